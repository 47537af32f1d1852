package analytics

import (
	"sort"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// LoyaltyPolicy blends inverse churn risk with normalized lifetime value:
//
//	loyalty = ChurnWeight*(1 - churn_score) + ValueWeight*(lifetime_value / ValueScale)
type LoyaltyPolicy struct {
	ChurnWeight float64
	ValueWeight float64
	ValueScale  float64
}

// DefaultLoyaltyPolicy returns the production weights and a 10000 value scale.
func DefaultLoyaltyPolicy() LoyaltyPolicy {
	return LoyaltyPolicy{ChurnWeight: 0.6, ValueWeight: 0.4, ValueScale: 10000}
}

// RankedClient is a client with its position and loyalty score.
type RankedClient struct {
	Client       domain.Client `json:"client"`
	Ranking      int           `json:"ranking"`
	LoyaltyScore float64       `json:"loyalty_score"`
}

// Score computes the loyalty score of a single client.
func (p LoyaltyPolicy) Score(c domain.Client) float64 {
	value := 0.0
	if p.ValueScale > 0 {
		value = c.LifetimeValue / p.ValueScale
	}
	return p.ChurnWeight*(1-c.ChurnScore) + p.ValueWeight*value
}

// TopN returns the n most loyal clients, highest first. Equal scores keep
// their input order. n <= 0 returns every client ranked.
func (p LoyaltyPolicy) TopN(clients []domain.Client, n int) []RankedClient {
	ranked := make([]RankedClient, len(clients))
	for i, c := range clients {
		ranked[i] = RankedClient{Client: c, LoyaltyScore: p.Score(c)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].LoyaltyScore > ranked[b].LoyaltyScore
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Ranking = i + 1
	}
	return ranked
}
