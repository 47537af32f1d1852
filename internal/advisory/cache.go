// Package advisory brokers AI-generated advice: it fingerprints each request,
// serves fresh answers from a TTL cache, and otherwise calls the external
// provider once per fingerprint, caching only successful answers.
package advisory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// Store persists cache entries keyed by fingerprint. Load must report an
// entry whether or not it has expired; expiry is judged by Cache.
type Store interface {
	Load(ctx context.Context, fingerprint string) (domain.CacheEntry, bool, error)
	Save(ctx context.Context, e domain.CacheEntry) error
}

// Cache is a lazily expiring cache of advisory text. Expired entries are
// treated as absent and overwritten on the next Put; nothing sweeps them.
type Cache struct {
	store Store
	now   func() time.Time
}

// NewCache wraps store. A nil now defaults to time.Now.
func NewCache(store Store, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, now: now}
}

// Fingerprint returns the hex SHA-256 of prompt and data joined by ':'.
// Equal pairs always map to the same key.
func Fingerprint(prompt, data string) string {
	sum := sha256.Sum256([]byte(prompt + ":" + data))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached text for fingerprint if it has not expired.
func (c *Cache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	e, ok, err := c.store.Load(ctx, fingerprint)
	if err != nil || !ok {
		return "", false, err
	}
	if !e.Live(c.now()) {
		return "", false, nil
	}
	return e.Response, true, nil
}

// Put upserts text under fingerprint with expiry now+ttl.
func (c *Cache) Put(ctx context.Context, fingerprint, text string, ttl time.Duration) error {
	now := c.now().UTC()
	return c.store.Save(ctx, domain.CacheEntry{
		Fingerprint: fingerprint,
		Response:    text,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	})
}
