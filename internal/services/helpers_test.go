package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

var refNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return refNow }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps transactions from tripping shared-cache table locks.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&domain.Client{}, &domain.Purchase{}, &domain.Product{},
		&domain.CacheEntry{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedClient(t *testing.T, db *gorm.DB, c domain.Client) domain.Client {
	t.Helper()
	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = refNow.AddDate(0, -2, 0)
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedPurchase(t *testing.T, db *gorm.DB, p domain.Purchase) domain.Purchase {
	t.Helper()
	if p.ID == "" {
		p.ID = fmt.Sprintf("p-%d", time.Now().UnixNano())
	}
	p.Recalculate()
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}

func seedProduct(t *testing.T, db *gorm.DB, p domain.Product) domain.Product {
	t.Helper()
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func reloadClient(t *testing.T, db *gorm.DB, id string) domain.Client {
	t.Helper()
	var c domain.Client
	if err := db.WithContext(context.Background()).First(&c, "id = ?", id).Error; err != nil {
		t.Fatalf("reload client: %v", err)
	}
	return c
}
