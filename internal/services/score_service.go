// Package services – ScoreService
//
// ScoreService owns the derived client fields: purchase count, lifetime
// value, and churn score. Every purchase mutation calls RecomputeMetrics so
// the three values always come from the same purchase snapshot.
//
// Concurrent mutations for the same client race last-writer-wins; the score
// is eventually consistent and must not be trusted for exact counts.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// ScoreService computes and persists churn metrics.
type ScoreService struct {
	DB     *gorm.DB
	Policy analytics.ChurnPolicy
	Now    func() time.Time
}

// NewScoreService returns a ScoreService using the default churn policy.
func NewScoreService(db *gorm.DB) *ScoreService {
	return &ScoreService{DB: db, Policy: analytics.DefaultChurnPolicy(), Now: time.Now}
}

func (s *ScoreService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Score returns the current churn score of a client computed from its
// purchases. It does not persist anything.
func (s *ScoreService) Score(ctx context.Context, clientID string) (float64, error) {
	ok, err := repo.ClientExists(ctx, s.DB, clientID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrClientNotFound
	}
	purchases, err := repo.ListPurchasesByClient(ctx, s.DB, clientID)
	if err != nil {
		return 0, err
	}
	return s.Policy.Score(purchases, s.now()), nil
}

// RecomputeMetrics re-derives and writes the client's purchase count,
// lifetime value, and churn score. A missing client is a no-op.
func (s *ScoreService) RecomputeMetrics(ctx context.Context, clientID string) error {
	return s.recompute(ctx, s.DB, clientID)
}

// recompute runs against db, which may be a transaction.
func (s *ScoreService) recompute(ctx context.Context, db *gorm.DB, clientID string) error {
	tr := otel.Tracer("services/ScoreService")
	ctx, span := tr.Start(ctx, "RecomputeMetrics",
		trace.WithAttributes(attribute.String("client.id", clientID)),
	)
	defer span.End()

	purchases, err := repo.ListPurchasesByClient(ctx, db, clientID)
	if err != nil {
		churnRecomputes.WithLabelValues("error").Inc()
		return err
	}
	m := s.Policy.Metrics(purchases, s.now())
	span.SetAttributes(
		attribute.Int("client.total_purchases", m.TotalPurchases),
		attribute.Float64("client.churn_score", m.ChurnScore),
	)

	err = repo.UpdateClientMetrics(ctx, db, clientID, m.TotalPurchases, m.LifetimeValue, m.ChurnScore)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		churnRecomputes.WithLabelValues("missing").Inc()
		log.Ctx(ctx).Debug().Str("client_id", clientID).Msg("recompute skipped: client gone")
		return nil
	case err != nil:
		churnRecomputes.WithLabelValues("error").Inc()
		return err
	}
	churnRecomputes.WithLabelValues("updated").Inc()
	return nil
}
