// Package services – DashboardService
//
// DashboardService builds the read-only analytics views: headline metrics,
// alerts, loyalty and churn rankings, the daily sales chart, and product
// sales analytics. Every view is computed from current data on each call;
// nothing is cached or persisted.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// Metrics are the headline dashboard counters.
type Metrics struct {
	TotalClients     int64   `json:"total_clients"`
	TotalProducts    int64   `json:"total_products"`
	TotalPurchases   int64   `json:"total_purchases"`
	TotalRevenue     float64 `json:"total_revenue"`
	MonthRevenue     float64 `json:"month_revenue"`
	NewClientsMonth  int64   `json:"new_clients_month"`
	LowStockProducts int64   `json:"low_stock_products"`
}

// ChartDataset is one named series of a chart.
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// SalesChart is the daily sales chart: one label per day, oldest first, and
// two datasets (orders and revenue) aligned with the labels.
type SalesChart struct {
	Labels   []string             `json:"labels"`
	Datasets []ChartDataset       `json:"datasets"`
	Points   []analytics.DayPoint `json:"points"`
}

// SalesAnalytics summarizes sales volume and the best-selling products.
type SalesAnalytics struct {
	TotalSales   int64               `json:"total_sales"`
	TotalRevenue float64             `json:"total_revenue"`
	MonthRevenue float64             `json:"month_revenue"`
	TopProducts  []repo.ProductSales `json:"top_products"`
}

// Overview bundles every dashboard view into one payload.
type Overview struct {
	Metrics     Metrics                       `json:"metrics"`
	Alerts      []domain.Alert                `json:"alerts"`
	TopClients  []analytics.RankedClient      `json:"top_clients"`
	ChurnRisk   []ChurnRiskEntry              `json:"churn_risk"`
	StockAlerts []analytics.ProductStockAlert `json:"stock_alerts"`
	SalesChart  SalesChart                    `json:"sales_chart"`
}

// DashboardService computes analytics views over the current data.
type DashboardService struct {
	DB      *gorm.DB
	Rules   analytics.AlertPolicy
	Loyalty analytics.LoyaltyPolicy
	// Loc is the zone used to cut days and months. Nil means UTC.
	Loc *time.Location
	// ChartDays is the length of the sales chart. <= 0 means 7.
	ChartDays int
	Now       func() time.Time
}

// NewDashboardService returns a DashboardService with default policies.
func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{
		DB:        db,
		Rules:     analytics.DefaultAlertPolicy(),
		Loyalty:   analytics.DefaultLoyaltyPolicy(),
		Loc:       time.UTC,
		ChartDays: 7,
		Now:       time.Now,
	}
}

func (s *DashboardService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Metrics returns the headline counters.
func (s *DashboardService) Metrics(ctx context.Context) (Metrics, error) {
	ctx, span := otel.Tracer("services/DashboardService").Start(ctx, "Metrics")
	defer span.End()

	var (
		m   Metrics
		err error
	)
	monthStart := analytics.StartOfMonth(s.now(), s.Loc)
	if m.TotalClients, err = repo.CountClients(ctx, s.DB); err != nil {
		return Metrics{}, err
	}
	if m.TotalProducts, err = repo.CountProducts(ctx, s.DB); err != nil {
		return Metrics{}, err
	}
	if m.TotalPurchases, err = repo.CountPurchases(ctx, s.DB); err != nil {
		return Metrics{}, err
	}
	if m.TotalRevenue, err = repo.SumRevenue(ctx, s.DB, time.Time{}); err != nil {
		return Metrics{}, err
	}
	if m.MonthRevenue, err = repo.SumRevenue(ctx, s.DB, monthStart); err != nil {
		return Metrics{}, err
	}
	if m.NewClientsMonth, err = repo.CountClientsRegisteredSince(ctx, s.DB, monthStart); err != nil {
		return Metrics{}, err
	}
	if m.LowStockProducts, err = repo.CountLowStock(ctx, s.DB); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// Alerts evaluates every alert rule against fresh counts. Rules are
// independent: a failing query skips only the rule that needs it.
func (s *DashboardService) Alerts(ctx context.Context) []domain.Alert {
	ctx, span := otel.Tracer("services/DashboardService").Start(ctx, "Alerts")
	defer span.End()

	now := s.now()
	snap := analytics.AlertSnapshot{Now: now}
	logger := log.Ctx(ctx)
	out := make([]domain.Alert, 0, 5)

	if n, err := repo.CountClientsByChurn(ctx, s.DB, s.Rules.ChurnThreshold); err != nil {
		logger.Error().Err(err).Str("rule", domain.AlertChurn).Msg("alert rule skipped")
	} else {
		snap.HighChurnCount = int(n)
		out = append(out, analytics.ChurnAlerts(snap)...)
	}

	if low, err := repo.ListLowStock(ctx, s.DB); err != nil {
		logger.Error().Err(err).Str("rule", domain.AlertStock).Msg("alert rule skipped")
	} else {
		snap.Products = low
		out = append(out, analytics.StockAlerts(snap)...)
	}

	if n, err := repo.CountPurchasesSince(ctx, s.DB, now.Add(-s.Rules.SalesWindow)); err != nil {
		logger.Error().Err(err).Str("rule", domain.AlertSales).Msg("alert rule skipped")
	} else {
		snap.RecentSales = int(n)
		out = append(out, s.Rules.SalesAlerts(snap)...)
	}

	if n, err := repo.CountClientsRegisteredSince(ctx, s.DB, now.Add(-s.Rules.AcquisitionWindow)); err != nil {
		logger.Error().Err(err).Str("rule", domain.AlertAcquisition).Msg("alert rule skipped")
	} else {
		snap.NewClientsCount = int(n)
		out = append(out, analytics.AcquisitionAlerts(snap)...)
	}

	span.SetAttributes(attribute.Int("alerts.count", len(out)))
	return out
}

// TopClients returns the n most loyal clients. n <= 0 defaults to 5.
func (s *DashboardService) TopClients(ctx context.Context, n int) ([]analytics.RankedClient, error) {
	if n <= 0 {
		n = 5
	}
	clients, err := repo.ListClientsByRegistration(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return s.Loyalty.TopN(clients, n), nil
}

// ChurnRisk returns the riskiest clients with their risk level.
func (s *DashboardService) ChurnRisk(ctx context.Context, limit int) ([]ChurnRiskEntry, error) {
	return listChurnRisk(ctx, s.DB, limit)
}

// StockAlerts returns one entry per product that needs restocking.
func (s *DashboardService) StockAlerts(ctx context.Context) ([]analytics.ProductStockAlert, error) {
	low, err := repo.ListLowStock(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return analytics.ProductStockAlerts(low), nil
}

// SalesChart returns the daily orders and revenue for the trailing days
// ending today, with no gaps.
func (s *DashboardService) SalesChart(ctx context.Context) (SalesChart, error) {
	ctx, span := otel.Tracer("services/DashboardService").Start(ctx, "SalesChart")
	defer span.End()

	now := s.now()
	from, to := analytics.SeriesWindow(now, s.ChartDays, s.Loc)
	purchases, err := repo.ListPurchasesBetween(ctx, s.DB, from, to)
	if err != nil {
		return SalesChart{}, err
	}
	points := analytics.DailySeries(purchases, now, s.ChartDays, s.Loc)

	chart := SalesChart{
		Labels: make([]string, len(points)),
		Datasets: []ChartDataset{
			{Label: "Orders", Data: make([]float64, len(points))},
			{Label: "Revenue", Data: make([]float64, len(points))},
		},
		Points: points,
	}
	for i, p := range points {
		chart.Labels[i] = p.Label
		chart.Datasets[0].Data[i] = float64(p.Orders)
		chart.Datasets[1].Data[i] = p.Revenue
	}
	return chart, nil
}

// SalesAnalytics returns sales totals and the top products by quantity.
// limit <= 0 defaults to 10.
func (s *DashboardService) SalesAnalytics(ctx context.Context, limit int) (SalesAnalytics, error) {
	if limit <= 0 {
		limit = 10
	}
	var (
		out SalesAnalytics
		err error
	)
	if out.TotalSales, err = repo.CountPurchases(ctx, s.DB); err != nil {
		return SalesAnalytics{}, err
	}
	if out.TotalRevenue, err = repo.SumRevenue(ctx, s.DB, time.Time{}); err != nil {
		return SalesAnalytics{}, err
	}
	if out.MonthRevenue, err = repo.SumRevenue(ctx, s.DB, analytics.StartOfMonth(s.now(), s.Loc)); err != nil {
		return SalesAnalytics{}, err
	}
	if out.TopProducts, err = repo.TopProducts(ctx, s.DB, limit); err != nil {
		return SalesAnalytics{}, err
	}
	if out.TopProducts == nil {
		out.TopProducts = []repo.ProductSales{}
	}
	return out, nil
}

// Overview returns every dashboard view at once.
func (s *DashboardService) Overview(ctx context.Context) (Overview, error) {
	ctx, span := otel.Tracer("services/DashboardService").Start(ctx, "Overview")
	defer span.End()

	var (
		o   Overview
		err error
	)
	if o.Metrics, err = s.Metrics(ctx); err != nil {
		return Overview{}, err
	}
	o.Alerts = s.Alerts(ctx)
	if o.TopClients, err = s.TopClients(ctx, 5); err != nil {
		return Overview{}, err
	}
	if o.ChurnRisk, err = s.ChurnRisk(ctx, 5); err != nil {
		return Overview{}, err
	}
	if o.StockAlerts, err = s.StockAlerts(ctx); err != nil {
		return Overview{}, err
	}
	if o.SalesChart, err = s.SalesChart(ctx); err != nil {
		return Overview{}, err
	}
	return o, nil
}
