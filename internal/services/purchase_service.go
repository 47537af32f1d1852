// Package services – PurchaseService
//
// PurchaseService records purchases and keeps every dependent value in step:
// the purchase total, the product stock, and the owning client's derived
// metrics. A create runs as one transaction so a failed recomputation rolls
// the purchase back.
//
// Idempotency:
// CreateIdempotent stores (user, scope, key) → purchase ID after a successful
// create. A retry with the same key returns the stored purchase and reports
// replay=true without touching stock or metrics.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// ScopePurchaseCreate is the idempotency scope of purchase creation.
const ScopePurchaseCreate = "purchases.create"

// PurchaseInput creates a purchase. A zero PurchasedAt means now.
type PurchaseInput struct {
	ClientID    string
	ProductName string
	Quantity    int
	UnitPrice   float64
	PurchasedAt time.Time
}

// PurchasePatch updates a purchase; nil fields are left unchanged.
type PurchasePatch struct {
	ClientID    *string
	ProductName *string
	Quantity    *int
	UnitPrice   *float64
	PurchasedAt *time.Time
}

// PurchaseView is a purchase joined with its client's display name.
type PurchaseView struct {
	domain.Purchase
	ClientName string `json:"client_name"`
}

// PurchaseService manages purchases.
type PurchaseService struct {
	DB      *gorm.DB
	Scores  *ScoreService
	IdemTTL time.Duration
}

// NewPurchaseService constructs a PurchaseService. idemTTL <= 0 defaults to 24h.
func NewPurchaseService(db *gorm.DB, scores *ScoreService, idemTTL time.Duration) *PurchaseService {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &PurchaseService{DB: db, Scores: scores, IdemTTL: idemTTL}
}

func validatePurchase(p *domain.Purchase) error {
	if p.ProductName == "" {
		return ErrInvalidName
	}
	if p.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.UnitPrice <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Create records a purchase, decrements the matching product's stock, and
// recomputes the client's metrics, all in one transaction. Purchases of
// products missing from the catalogue are accepted without stock changes.
func (s *PurchaseService) Create(ctx context.Context, in PurchaseInput) (*domain.Purchase, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("client.id", in.ClientID),
			attribute.Int("purchase.quantity", in.Quantity),
		),
	)
	defer span.End()

	p := &domain.Purchase{
		ClientID:    in.ClientID,
		ProductName: normalizeSpace(in.ProductName),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		PurchasedAt: in.PurchasedAt.UTC(),
	}
	if err := validatePurchase(p); err != nil {
		return nil, err
	}
	p.Recalculate()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.ClientExists(ctx, tx, p.ClientID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClientNotFound
		}
		if err := repo.CreatePurchase(ctx, tx, p); err != nil {
			return err
		}
		if err := repo.DecrementStock(ctx, tx, p.ProductName, p.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return s.Scores.recompute(ctx, tx, p.ClientID)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("purchase.id", p.ID))
	return p, nil
}

// CreateIdempotent is Create guarded by an idempotency key. An empty key
// behaves exactly like Create.
func (s *PurchaseService) CreateIdempotent(ctx context.Context, userID, key string, in PurchaseInput) (*domain.Purchase, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		p, err := s.Create(ctx, in)
		return p, false, err
	}

	if rec, err := repo.GetIdempotency(ctx, s.DB, userID, ScopePurchaseCreate, key, time.Now().UTC()); err == nil {
		if p, err := repo.GetPurchase(ctx, s.DB, rec.ResourceID); err == nil {
			return p, true, nil
		}
	}

	p, err := s.Create(ctx, in)
	if err != nil {
		return nil, false, err
	}
	if _, err := repo.CreateIdempotency(ctx, s.DB, userID, ScopePurchaseCreate, key, p.ID, http.StatusCreated, s.IdemTTL); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency record not stored")
	}
	return p, false, nil
}

// Get returns a purchase by ID.
func (s *PurchaseService) Get(ctx context.Context, id string) (*domain.Purchase, error) {
	p, err := repo.GetPurchase(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPurchaseNotFound
	}
	return p, err
}

// ListPage returns a page of purchases, newest first, each with its client's
// name, plus the total count.
func (s *PurchaseService) ListPage(ctx context.Context, page, pageSize int) ([]PurchaseView, int64, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	_, pageSize, offset := pageBounds(page, pageSize)
	total, err := repo.CountPurchases(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []PurchaseView{}, 0, nil
	}
	items, err := repo.ListPurchasesPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, p := range items {
		if _, ok := seen[p.ClientID]; !ok {
			seen[p.ClientID] = struct{}{}
			ids = append(ids, p.ClientID)
		}
	}
	clients, err := repo.GetClientsByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.FullName()
	}

	out := make([]PurchaseView, len(items))
	for i, p := range items {
		out[i] = PurchaseView{Purchase: p, ClientName: names[p.ClientID]}
	}
	return out, total, nil
}

// ListByClient returns a client's purchases, newest first.
func (s *PurchaseService) ListByClient(ctx context.Context, clientID string) ([]domain.Purchase, error) {
	ok, err := repo.ClientExists(ctx, s.DB, clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClientNotFound
	}
	return repo.ListPurchasesByClient(ctx, s.DB, clientID)
}

// Update applies patch, recomputes the total, and refreshes the metrics of
// the owning client. When the purchase moves to another client both clients
// are recomputed. Stock is not adjusted on update.
func (s *PurchaseService) Update(ctx context.Context, id string, patch PurchasePatch) (*domain.Purchase, error) {
	var out *domain.Purchase
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPurchase(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPurchaseNotFound
		}
		if err != nil {
			return err
		}
		prevClient := p.ClientID

		if patch.ClientID != nil {
			p.ClientID = *patch.ClientID
		}
		if patch.ProductName != nil {
			p.ProductName = normalizeSpace(*patch.ProductName)
		}
		if patch.Quantity != nil {
			p.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			p.UnitPrice = *patch.UnitPrice
		}
		if patch.PurchasedAt != nil {
			p.PurchasedAt = patch.PurchasedAt.UTC()
		}
		if err := validatePurchase(p); err != nil {
			return err
		}
		p.Recalculate()

		if p.ClientID != prevClient {
			ok, err := repo.ClientExists(ctx, tx, p.ClientID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrClientNotFound
			}
		}
		if err := repo.UpdatePurchase(ctx, tx, p); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if err := s.Scores.recompute(ctx, tx, p.ClientID); err != nil {
			return err
		}
		if p.ClientID != prevClient {
			if err := s.Scores.recompute(ctx, tx, prevClient); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a purchase and recomputes its client's metrics.
func (s *PurchaseService) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPurchase(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPurchaseNotFound
		}
		if err != nil {
			return err
		}
		if err := repo.DeletePurchase(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		return s.Scores.recompute(ctx, tx, p.ClientID)
	})
}
