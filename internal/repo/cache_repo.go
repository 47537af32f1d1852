// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores advisory cache entries in the ai_cache
// table.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// GetCacheEntry returns the entry for fingerprint whether or not it has
// expired. Freshness is the caller's decision.
func GetCacheEntry(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.CacheEntry, error) {
	var e domain.CacheEntry
	if err := db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertCacheEntry inserts e or overwrites the existing row with the same
// fingerprint.
func UpsertCacheEntry(ctx context.Context, db *gorm.DB, e *domain.CacheEntry) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "created_at", "expires_at"}),
	}).Create(e).Error
}
