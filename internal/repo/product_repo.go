// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// model and its stock levels.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// lowStockCond selects products at or below their minimum stock.
const lowStockCond = "current_stock <= minimum_stock"

// CreateProduct inserts p, assigning an ID when unset.
func CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetProduct fetches a product by ID.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns every product ordered by name.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// CountProducts returns the number of products.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error
	return n, err
}

// ListLowStock returns products at or below minimum stock, emptiest first.
func ListLowStock(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).Where(lowStockCond).
		Order("current_stock ASC").Order("name ASC").
		Find(&out).Error
	return out, err
}

// CountLowStock counts products at or below minimum stock.
func CountLowStock(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Where(lowStockCond).Count(&n).Error
	return n, err
}

// UpdateProduct rewrites the mutable columns of p.
func UpdateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	res := db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", p.ID).Updates(map[string]any{
		"name":          p.Name,
		"price":         p.Price,
		"current_stock": p.CurrentStock,
		"minimum_stock": p.MinimumStock,
		"updated_at":    time.Now().UTC(),
	})
	if isUniqueViolation(res.Error) {
		return ErrDuplicate
	}
	return affected(res)
}

// DeleteProduct removes a product by ID.
func DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	return affected(db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{}))
}

// DecrementStock subtracts qty from the product named name in a single
// statement, flooring at zero. Returns ErrNotFound when no product has that
// name.
func DecrementStock(ctx context.Context, db *gorm.DB, name string, qty int) error {
	res := db.WithContext(ctx).Model(&domain.Product{}).Where("name = ?", name).Updates(map[string]any{
		"current_stock": gorm.Expr("CASE WHEN current_stock > ? THEN current_stock - ? ELSE 0 END", qty, qty),
		"updated_at":    time.Now().UTC(),
	})
	return affected(res)
}
