package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// AlertPolicy holds the thresholds of the alert rules.
type AlertPolicy struct {
	// ChurnThreshold is the score at or above which a client counts as high risk.
	ChurnThreshold float64
	// SalesWindow is the trailing window checked for low sales velocity.
	SalesWindow time.Duration
	// MinSales is the purchase count below which a sales alert fires.
	MinSales int
	// AcquisitionWindow is the trailing window checked for new registrations.
	AcquisitionWindow time.Duration
}

// DefaultAlertPolicy returns the production thresholds.
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		ChurnThreshold:    0.7,
		SalesWindow:       7 * 24 * time.Hour,
		MinSales:          5,
		AcquisitionWindow: 30 * 24 * time.Hour,
	}
}

// AlertSnapshot is the input of the alert rules. Counts are pre-aggregated by
// the caller; the product list only needs to contain low-stock products but
// may contain all of them.
type AlertSnapshot struct {
	Now             time.Time
	HighChurnCount  int
	Products        []domain.Product
	RecentSales     int
	NewClientsCount int
}

// Generate evaluates every rule independently and concatenates the results.
func (p AlertPolicy) Generate(s AlertSnapshot) []domain.Alert {
	out := make([]domain.Alert, 0, 5)
	out = append(out, ChurnAlerts(s)...)
	out = append(out, StockAlerts(s)...)
	out = append(out, p.SalesAlerts(s)...)
	out = append(out, AcquisitionAlerts(s)...)
	return out
}

// ChurnAlerts emits one high-severity alert when any client is at high risk.
func ChurnAlerts(s AlertSnapshot) []domain.Alert {
	if s.HighChurnCount <= 0 {
		return nil
	}
	return []domain.Alert{newAlert(s.Now, domain.AlertChurn, domain.SeverityHigh, s.HighChurnCount,
		"High churn risk clients",
		fmt.Sprintf("%d clients are at high risk of churning", s.HighChurnCount))}
}

// StockAlerts splits low-stock products into out-of-stock (critical) and
// positive-but-low (medium), one alert per non-empty group.
func StockAlerts(s AlertSnapshot) []domain.Alert {
	var empty, low int
	for _, p := range s.Products {
		if !p.LowStock() {
			continue
		}
		if p.CurrentStock <= 0 {
			empty++
		} else {
			low++
		}
	}
	var out []domain.Alert
	if empty > 0 {
		out = append(out, newAlert(s.Now, domain.AlertStock, domain.SeverityCritical, empty,
			"Products out of stock",
			fmt.Sprintf("%d products are out of stock", empty)))
	}
	if low > 0 {
		out = append(out, newAlert(s.Now, domain.AlertStock, domain.SeverityMedium, low,
			"Products with low stock",
			fmt.Sprintf("%d products have low stock", low)))
	}
	return out
}

// SalesAlerts emits a medium alert when fewer than MinSales purchases
// happened in the trailing sales window.
func (p AlertPolicy) SalesAlerts(s AlertSnapshot) []domain.Alert {
	if s.RecentSales >= p.MinSales {
		return nil
	}
	days := int(p.SalesWindow.Hours() / 24)
	return []domain.Alert{newAlert(s.Now, domain.AlertSales, domain.SeverityMedium, s.RecentSales,
		"Low sales this week",
		fmt.Sprintf("Only %d sales in the last %d days", s.RecentSales, days))}
}

// AcquisitionAlerts emits a medium alert when no client registered in the
// trailing acquisition window.
func AcquisitionAlerts(s AlertSnapshot) []domain.Alert {
	if s.NewClientsCount != 0 {
		return nil
	}
	return []domain.Alert{newAlert(s.Now, domain.AlertAcquisition, domain.SeverityMedium, 0,
		"No new clients",
		"No new clients have registered in the last month")}
}

func newAlert(now time.Time, kind, severity string, count int, title, msg string) domain.Alert {
	return domain.Alert{
		ID:          uuid.NewString(),
		Kind:        kind,
		Title:       title,
		Message:     msg,
		Severity:    severity,
		Count:       count,
		GeneratedAt: now,
	}
}

// Stock alert types for the per-product listing.
const (
	StockOut = "out_of_stock"
	StockLow = "low_stock"
)

// ProductStockAlert describes a single product that needs restocking.
type ProductStockAlert struct {
	Product   domain.Product `json:"product"`
	AlertType string         `json:"alert_type"`
	Message   string         `json:"message"`
}

// ProductStockAlerts returns one entry per low-stock product, in input order.
func ProductStockAlerts(products []domain.Product) []ProductStockAlert {
	out := make([]ProductStockAlert, 0, len(products))
	for _, p := range products {
		if !p.LowStock() {
			continue
		}
		a := ProductStockAlert{Product: p}
		if p.CurrentStock <= 0 {
			a.AlertType = StockOut
			a.Message = fmt.Sprintf("Product '%s' is out of stock", p.Name)
		} else {
			a.AlertType = StockLow
			a.Message = fmt.Sprintf("Product '%s' has low stock (%d units)", p.Name, p.CurrentStock)
		}
		out = append(out, a)
	}
	return out
}
