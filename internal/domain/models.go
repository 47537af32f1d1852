// Package domain defines the persistence models for clients, purchases, and
// products. These types are mapped with GORM and form the core data layer of
// the CRM backend.
package domain

import (
	"time"
)

// Client represents a customer of the business. The churn score and the two
// purchase aggregates are derived fields: they are owned by the scoring
// service and rewritten after every purchase mutation.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - FirstName / LastName: display name parts.
//   - Email: unique contact address.
//   - RegisteredAt: registration timestamp (used by acquisition alerts).
//   - ChurnScore: heuristic churn risk in [0,1].
//   - TotalPurchases: number of purchases recorded for the client.
//   - LifetimeValue: sum of purchase totals.
type Client struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	FirstName      string    `json:"first_name"      gorm:"type:varchar(100);not null"`
	LastName       string    `json:"last_name"       gorm:"type:varchar(100);not null"`
	Email          string    `json:"email"           gorm:"type:varchar(255);not null;uniqueIndex:ux_clients_email"`
	RegisteredAt   time.Time `json:"registered_at"   gorm:"not null;index"`
	ChurnScore     float64   `json:"churn_score"     gorm:"not null;default:0;index"`
	TotalPurchases int       `json:"total_purchases" gorm:"not null;default:0"`
	LifetimeValue  float64   `json:"lifetime_value"  gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// FullName joins first and last name.
func (c Client) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Purchase is a single order line placed by a client. Total always equals
// Quantity * UnitPrice; it is recomputed whenever either factor changes.
type Purchase struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ClientID    string    `json:"client_id"    gorm:"type:char(36);not null;index:idx_purchases_client"`
	ProductName string    `json:"product_name" gorm:"type:varchar(200);not null;index"`
	Quantity    int       `json:"quantity"     gorm:"not null;check:quantity > 0"`
	UnitPrice   float64   `json:"unit_price"   gorm:"not null;check:unit_price > 0"`
	Total       float64   `json:"total"        gorm:"not null"`
	PurchasedAt time.Time `json:"purchased_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Recalculate refreshes Total from Quantity and UnitPrice.
func (p *Purchase) Recalculate() {
	p.Total = float64(p.Quantity) * p.UnitPrice
}

// Product is a stock-keeping item. Only the stock fields matter to the
// analytics layer; price is used by pricing advice.
type Product struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(200);not null;uniqueIndex:ux_products_name"`
	Price        float64   `json:"price"         gorm:"not null;check:price > 0"`
	CurrentStock int       `json:"current_stock" gorm:"not null;default:0;index"`
	MinimumStock int       `json:"minimum_stock" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// LowStock reports whether the product is at or below its minimum stock.
func (p Product) LowStock() bool { return p.CurrentStock <= p.MinimumStock }
