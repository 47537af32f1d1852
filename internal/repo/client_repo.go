// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Client model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (gorm.ErrRecordNotFound).
//   - Email collisions yield ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// CreateClient inserts c, assigning an ID and RegisteredAt when unset.
func CreateClient(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetClient fetches a client by ID.
func GetClient(ctx context.Context, db *gorm.DB, id string) (*domain.Client, error) {
	var c domain.Client
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientsByIDs fetches the clients whose IDs are in ids. Unknown IDs are
// skipped.
func GetClientsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Client
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// ClientExists reports whether a client with id exists.
func ClientExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CountClients returns the number of clients.
func CountClients(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Client{}).Count(&n).Error
	return n, err
}

// ListClientsPage returns clients newest-registered first.
func ListClientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Client, error) {
	var out []domain.Client
	err := db.WithContext(ctx).
		Order("registered_at DESC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// ListClientsByRegistration returns every client oldest-registered first,
// ties broken by ID. This order is the stable input for loyalty ranking.
func ListClientsByRegistration(ctx context.Context, db *gorm.DB) ([]domain.Client, error) {
	var out []domain.Client
	err := db.WithContext(ctx).
		Order("registered_at ASC").Order("id ASC").
		Find(&out).Error
	return out, err
}

// ListClientsByChurn returns clients with churn_score >= minScore, riskiest
// first. limit <= 0 means no limit.
func ListClientsByChurn(ctx context.Context, db *gorm.DB, minScore float64, limit int) ([]domain.Client, error) {
	q := db.WithContext(ctx).
		Where("churn_score >= ?", minScore).
		Order("churn_score DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Client
	err := q.Find(&out).Error
	return out, err
}

// CountClientsByChurn counts clients with churn_score >= minScore.
func CountClientsByChurn(ctx context.Context, db *gorm.DB, minScore float64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Client{}).Where("churn_score >= ?", minScore).Count(&n).Error
	return n, err
}

// CountClientsRegisteredSince counts clients registered at or after since.
func CountClientsRegisteredSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Client{}).Where("registered_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// UpdateClientProfile writes the editable profile fields of c.
func UpdateClientProfile(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	res := db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", c.ID).Updates(map[string]any{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"email":      c.Email,
		"updated_at": time.Now().UTC(),
	})
	if isUniqueViolation(res.Error) {
		return ErrDuplicate
	}
	return affected(res)
}

// UpdateClientMetrics writes the three derived fields in one statement, so no
// reader can observe a partial update. Returns ErrNotFound if the client is
// gone.
func UpdateClientMetrics(ctx context.Context, db *gorm.DB, id string, totalPurchases int, lifetimeValue, churnScore float64) error {
	res := db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", id).Updates(map[string]any{
		"total_purchases": totalPurchases,
		"lifetime_value":  lifetimeValue,
		"churn_score":     churnScore,
		"updated_at":      time.Now().UTC(),
	})
	return affected(res)
}

// DeleteClient removes a client and its purchases in one transaction.
func DeleteClient(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&domain.Purchase{}).Error; err != nil {
			return err
		}
		return affected(tx.Where("id = ?", id).Delete(&domain.Client{}))
	})
}
