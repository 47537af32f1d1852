// Package services – ClientService
//
// ClientService manages client records. It validates and normalizes input,
// maps repository errors onto service errors, and never touches the derived
// metric fields, which belong to ScoreService.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// ClientInput is the editable part of a client.
type ClientInput struct {
	FirstName string
	LastName  string
	Email     string
}

// ChurnRiskEntry is a client flagged by the churn-risk listing.
type ChurnRiskEntry struct {
	Client    domain.Client `json:"client"`
	RiskLevel string        `json:"risk_level"`
}

// churnListThreshold is the minimum score shown in the churn-risk listing.
const churnListThreshold = 0.6

// ClientService provides client CRUD and the churn-risk listing.
type ClientService struct {
	DB *gorm.DB
}

func (in ClientInput) normalize() (ClientInput, error) {
	in.FirstName = normalizeSpace(in.FirstName)
	in.LastName = normalizeSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FirstName == "" {
		return in, ErrInvalidName
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return in, ErrInvalidEmail
	}
	return in, nil
}

// Create registers a new client. Metrics start at zero.
func (s *ClientService) Create(ctx context.Context, in ClientInput) (*domain.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c := &domain.Client{FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}
	if err := repo.CreateClient(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return c, nil
}

// Get returns a client by ID.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := repo.GetClient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// ListPage returns a page of clients, newest first, with the total count.
func (s *ClientService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Client, int64, error) {
	tr := otel.Tracer("services/ClientService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	_, pageSize, offset := pageBounds(page, pageSize)
	total, err := repo.CountClients(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Client{}, 0, nil
	}
	items, err := repo.ListClientsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Update replaces the profile fields of a client.
func (s *ClientService) Update(ctx context.Context, id string, in ClientInput) (*domain.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c := &domain.Client{ID: id, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}
	switch err := repo.UpdateClientProfile(ctx, s.DB, c); {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrClientNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicateEmail
	case err != nil:
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a client and its purchases.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	err := repo.DeleteClient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrClientNotFound
	}
	return err
}

// ChurnRisk lists clients scoring at least 0.6, riskiest first, each with
// its risk level. limit <= 0 defaults to 5.
func (s *ClientService) ChurnRisk(ctx context.Context, limit int) ([]ChurnRiskEntry, error) {
	return listChurnRisk(ctx, s.DB, limit)
}

func listChurnRisk(ctx context.Context, db *gorm.DB, limit int) ([]ChurnRiskEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	clients, err := repo.ListClientsByChurn(ctx, db, churnListThreshold, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ChurnRiskEntry, len(clients))
	for i, c := range clients {
		out[i] = ChurnRiskEntry{Client: c, RiskLevel: analytics.RiskLevel(c.ChurnScore)}
	}
	return out, nil
}

// normalizeSpace trims and collapses internal whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
