package domain

import "time"

// CacheEntry stores generated advisory text keyed by the fingerprint of the
// prompt and context that produced it. Rows whose ExpiresAt is not after the
// current time are treated as absent; they are overwritten on the next write
// and never swept.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint" gorm:"type:char(64);primaryKey"`
	Response    string    `json:"response"    gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"  gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"  gorm:"not null;index"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "ai_cache" }

// Live reports whether the entry may still be served at now.
func (e CacheEntry) Live(now time.Time) bool { return now.Before(e.ExpiresAt) }

// Alert kinds.
const (
	AlertChurn       = "churn"
	AlertStock       = "stock"
	AlertSales       = "sales"
	AlertAcquisition = "general"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is an operational warning derived from a snapshot of current data.
// Alerts are recomputed on every read and never stored, so each one carries
// a fresh ID even when the underlying condition has not changed.
type Alert struct {
	ID          string    `json:"id"`
	Kind        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	Count       int       `json:"count,omitempty"`
	GeneratedAt time.Time `json:"created_at"`
}
