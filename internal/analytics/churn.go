// Package analytics holds the deterministic business heuristics of the CRM:
// churn scoring, loyalty ranking, alert derivation, and daily sales series.
//
// Everything here is a pure function over snapshots handed in by the service
// layer. Nothing touches the database, the clock, or global state, so every
// rule can be tested against a literal snapshot.
package analytics

import (
	"math"
	"time"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// ChurnPolicy holds the tunable constants of the churn heuristic.
//
//	recency   = min(days_since_last_purchase / RecencyDays, 1)
//	frequency = max(0, 1 - purchase_count / FrequencyPurchases)
//	score     = clamp(RecencyWeight*recency + FrequencyWeight*frequency, 0, 1)
//
// A client with no purchases scores NoHistoryScore.
type ChurnPolicy struct {
	NoHistoryScore     float64
	RecencyDays        float64
	FrequencyPurchases float64
	RecencyWeight      float64
	FrequencyWeight    float64
}

// DefaultChurnPolicy returns the production constants.
func DefaultChurnPolicy() ChurnPolicy {
	return ChurnPolicy{
		NoHistoryScore:     0.8,
		RecencyDays:        365,
		FrequencyPurchases: 50,
		RecencyWeight:      0.7,
		FrequencyWeight:    0.3,
	}
}

// ClientMetrics are the derived fields written back to a client record.
type ClientMetrics struct {
	TotalPurchases int
	LifetimeValue  float64
	ChurnScore     float64
}

// Score computes the churn score for a purchase history at now.
// Days since the last purchase are counted in whole days; purchases dated in
// the future count as zero days ago.
func (p ChurnPolicy) Score(purchases []domain.Purchase, now time.Time) float64 {
	if len(purchases) == 0 {
		return p.NoHistoryScore
	}

	last := purchases[0].PurchasedAt
	for _, pu := range purchases[1:] {
		if pu.PurchasedAt.After(last) {
			last = pu.PurchasedAt
		}
	}
	days := math.Floor(now.Sub(last).Hours() / 24)
	if days < 0 {
		days = 0
	}

	recency := 1.0
	if p.RecencyDays > 0 {
		recency = math.Min(days/p.RecencyDays, 1.0)
	}
	frequency := 0.0
	if p.FrequencyPurchases > 0 {
		frequency = math.Max(0, 1-float64(len(purchases))/p.FrequencyPurchases)
	}
	return clamp01(p.RecencyWeight*recency + p.FrequencyWeight*frequency)
}

// Metrics derives every client aggregate from the same purchase slice so the
// three values are always mutually consistent.
func (p ChurnPolicy) Metrics(purchases []domain.Purchase, now time.Time) ClientMetrics {
	var ltv float64
	for _, pu := range purchases {
		ltv += pu.Total
	}
	return ClientMetrics{
		TotalPurchases: len(purchases),
		LifetimeValue:  ltv,
		ChurnScore:     p.Score(purchases, now),
	}
}

// Churn risk levels used by the risk listing.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// RiskLevel buckets a churn score: high >= 0.8, medium >= 0.6, otherwise low.
func RiskLevel(score float64) string {
	switch {
	case score >= 0.8:
		return RiskHigh
	case score >= 0.6:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
