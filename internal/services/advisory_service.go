// Package services – AdvisoryService
//
// AdvisoryService answers the advisory endpoints. Each request is first
// admitted by the sliding-window gate under the identity "ai_<kind>:<user>",
// then the relevant data snapshot is loaded, rendered by the Prompter, and
// handed to the Gateway (cache, provider, cache write).
//
// Denials are returned as *RateLimitedError and provider failures as
// *advisory.ProviderError; neither is ever rendered as advice text.
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

	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/ratelimit"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

const (
	// offerPurchases is how many recent purchases feed offer advice.
	offerPurchases = 10
	// restockSales bounds the per-product sales rows fed to restock advice.
	restockSales = 50
)

// AdvisoryService gates and answers advisory requests.
type AdvisoryService struct {
	DB        *gorm.DB
	Gateway   *advisory.Gateway
	Prompter  *advisory.Prompter
	Gate      *ratelimit.SlidingWindow
	Dashboard *DashboardService

	// Limit requests per Window are admitted per identity.
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func (s *AdvisoryService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// admit checks the gate for (kind, user) and returns a *RateLimitedError on
// denial.
func (s *AdvisoryService) admit(ctx context.Context, kind advisory.Kind, userID string) error {
	if s.Gate == nil || s.Limit <= 0 {
		return nil
	}
	identity := "ai_" + string(kind) + ":" + userID
	d := s.Gate.Check(identity, s.Limit, s.Window)
	if d.Allowed {
		return nil
	}
	rateGateDenials.WithLabelValues(string(kind)).Inc()
	log.Ctx(ctx).Warn().
		Str("identity", identity).
		Time("reset_time", d.ResetTime).
		Msg("advisory request rate limited")
	return &RateLimitedError{
		Identity:   identity,
		Reason:     "ai_" + string(kind),
		Limit:      s.Limit,
		Window:     s.Window,
		ResetTime:  d.ResetTime,
		RetryAfter: d.RetryAfter(s.now()),
	}
}

func (s *AdvisoryService) start(ctx context.Context, op string, kind advisory.Kind, userID string) (context.Context, trace.Span) {
	return otel.Tracer("services/AdvisoryService").Start(ctx, op,
		trace.WithAttributes(
			attribute.String("advice.kind", string(kind)),
			attribute.String("user.id", userID),
		),
	)
}

// ChurnSuggestions returns retention advice for one client.
func (s *AdvisoryService) ChurnSuggestions(ctx context.Context, userID, clientID string) (advisory.Advice, error) {
	ctx, span := s.start(ctx, "ChurnSuggestions", advisory.KindChurn, userID)
	defer span.End()

	if err := s.admit(ctx, advisory.KindChurn, userID); err != nil {
		return advisory.Advice{}, err
	}
	c, err := repo.GetClient(ctx, s.DB, clientID)
	if errors.Is(err, repo.ErrNotFound) {
		return advisory.Advice{}, ErrClientNotFound
	}
	if err != nil {
		return advisory.Advice{}, err
	}
	prompt, data := s.Prompter.Churn(*c)
	return s.Gateway.Advise(ctx, advisory.KindChurn, prompt, data)
}

// OfferSuggestions returns promotion ideas from recent purchases and the most
// loyal clients. limit bounds the clients considered; <= 0 means 5.
func (s *AdvisoryService) OfferSuggestions(ctx context.Context, userID string, limit int) (advisory.Advice, error) {
	ctx, span := s.start(ctx, "OfferSuggestions", advisory.KindOffers, userID)
	defer span.End()

	if err := s.admit(ctx, advisory.KindOffers, userID); err != nil {
		return advisory.Advice{}, err
	}
	purchases, err := repo.ListPurchasesPage(ctx, s.DB, 0, offerPurchases)
	if err != nil {
		return advisory.Advice{}, err
	}
	ranked, err := s.Dashboard.TopClients(ctx, limit)
	if err != nil {
		return advisory.Advice{}, err
	}
	clients := make([]domain.Client, len(ranked))
	for i, r := range ranked {
		clients[i] = r.Client
	}
	prompt, data := s.Prompter.Offers(purchases, clients)
	return s.Gateway.Advise(ctx, advisory.KindOffers, prompt, data)
}

// PricingSuggestions returns a pricing strategy for one product.
func (s *AdvisoryService) PricingSuggestions(ctx context.Context, userID, productID string) (advisory.Advice, error) {
	ctx, span := s.start(ctx, "PricingSuggestions", advisory.KindPricing, userID)
	defer span.End()

	if err := s.admit(ctx, advisory.KindPricing, userID); err != nil {
		return advisory.Advice{}, err
	}
	p, err := repo.GetProduct(ctx, s.DB, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return advisory.Advice{}, ErrProductNotFound
	}
	if err != nil {
		return advisory.Advice{}, err
	}
	sold, err := repo.QuantitySold(ctx, s.DB, p.Name)
	if err != nil {
		return advisory.Advice{}, err
	}
	prompt, data := s.Prompter.Pricing(*p, sold)
	return s.Gateway.Advise(ctx, advisory.KindPricing, prompt, data)
}

// RestockPlan returns a replenishment plan from stock levels and sales.
func (s *AdvisoryService) RestockPlan(ctx context.Context, userID string) (advisory.Advice, error) {
	ctx, span := s.start(ctx, "RestockPlan", advisory.KindRestock, userID)
	defer span.End()

	if err := s.admit(ctx, advisory.KindRestock, userID); err != nil {
		return advisory.Advice{}, err
	}
	products, err := repo.ListProducts(ctx, s.DB)
	if err != nil {
		return advisory.Advice{}, err
	}
	top, err := repo.TopProducts(ctx, s.DB, restockSales)
	if err != nil {
		return advisory.Advice{}, err
	}
	sales := make([]advisory.SalesLine, len(top))
	for i, t := range top {
		sales[i] = advisory.SalesLine{Product: t.Product, Quantity: t.Quantity, Revenue: t.Revenue}
	}
	prompt, data := s.Prompter.Restock(products, sales)
	return s.Gateway.Advise(ctx, advisory.KindRestock, prompt, data)
}

// GlobalInsights returns strategic advice from the headline metrics.
func (s *AdvisoryService) GlobalInsights(ctx context.Context, userID string) (advisory.Advice, error) {
	ctx, span := s.start(ctx, "GlobalInsights", advisory.KindInsights, userID)
	defer span.End()

	if err := s.admit(ctx, advisory.KindInsights, userID); err != nil {
		return advisory.Advice{}, err
	}
	m, err := s.Dashboard.Metrics(ctx)
	if err != nil {
		return advisory.Advice{}, err
	}
	highChurn, err := repo.CountClientsByChurn(ctx, s.DB, s.Dashboard.Rules.ChurnThreshold)
	if err != nil {
		return advisory.Advice{}, err
	}
	prompt, data := s.Prompter.Insights(advisory.BusinessMetrics{
		TotalClients:     m.TotalClients,
		TotalProducts:    m.TotalProducts,
		TotalPurchases:   m.TotalPurchases,
		TotalRevenue:     m.TotalRevenue,
		MonthRevenue:     m.MonthRevenue,
		NewClientsMonth:  m.NewClientsMonth,
		LowStockProducts: m.LowStockProducts,
		HighChurnClients: highChurn,
	})
	return s.Gateway.Advise(ctx, advisory.KindInsights, prompt, data)
}
