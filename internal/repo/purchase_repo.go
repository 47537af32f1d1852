// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Purchase
// model, including the date-range and group-by aggregates used by the
// dashboard and the analytics layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// ProductSales is the per-product aggregate of purchase lines.
type ProductSales struct {
	Product  string  `json:"product"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// CreatePurchase inserts p, assigning an ID and PurchasedAt when unset.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetPurchase fetches a purchase by ID.
func GetPurchase(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePurchase rewrites every mutable column of p.
func UpdatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	res := db.WithContext(ctx).Model(&domain.Purchase{}).Where("id = ?", p.ID).Updates(map[string]any{
		"client_id":    p.ClientID,
		"product_name": p.ProductName,
		"quantity":     p.Quantity,
		"unit_price":   p.UnitPrice,
		"total":        p.Total,
		"purchased_at": p.PurchasedAt,
		"updated_at":   time.Now().UTC(),
	})
	return affected(res)
}

// DeletePurchase removes a purchase by ID.
func DeletePurchase(ctx context.Context, db *gorm.DB, id string) error {
	return affected(db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Purchase{}))
}

// CountPurchases returns the number of purchases.
func CountPurchases(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Purchase{}).Count(&n).Error
	return n, err
}

// CountPurchasesSince counts purchases at or after since.
func CountPurchasesSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Purchase{}).Where("purchased_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// ListPurchasesPage returns purchases newest first.
func ListPurchasesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Order("purchased_at DESC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPurchasesByClient returns every purchase of a client, newest first.
func ListPurchasesByClient(ctx context.Context, db *gorm.DB, clientID string) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("purchased_at DESC").Order("id ASC").
		Find(&out).Error
	return out, err
}

// ListPurchasesBetween returns purchases in [from, to), oldest first.
func ListPurchasesBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Where("purchased_at >= ? AND purchased_at < ?", from.UTC(), to.UTC()).
		Order("purchased_at ASC").
		Find(&out).Error
	return out, err
}

// SumRevenue totals purchase amounts at or after since; a zero since sums
// every purchase.
func SumRevenue(ctx context.Context, db *gorm.DB, since time.Time) (float64, error) {
	q := db.WithContext(ctx).Model(&domain.Purchase{})
	if !since.IsZero() {
		q = q.Where("purchased_at >= ?", since.UTC())
	}
	var row struct{ Revenue float64 }
	err := q.Select("COALESCE(SUM(total), 0) AS revenue").Scan(&row).Error
	return row.Revenue, err
}

// TopProducts groups purchases by product name and returns the best sellers
// by quantity. limit <= 0 returns every product.
func TopProducts(ctx context.Context, db *gorm.DB, limit int) ([]ProductSales, error) {
	q := db.WithContext(ctx).Model(&domain.Purchase{}).
		Select("product_name AS product, SUM(quantity) AS quantity, SUM(total) AS revenue").
		Group("product_name").
		Order("quantity DESC").Order("product ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []ProductSales
	err := q.Scan(&out).Error
	return out, err
}

// QuantitySold returns the total units sold under productName.
func QuantitySold(ctx context.Context, db *gorm.DB, productName string) (int64, error) {
	var row struct{ Quantity int64 }
	err := db.WithContext(ctx).Model(&domain.Purchase{}).
		Select("COALESCE(SUM(quantity), 0) AS quantity").
		Where("product_name = ?", productName).
		Scan(&row).Error
	return row.Quantity, err
}
