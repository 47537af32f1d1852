// Package services – ProductService
//
// ProductService manages the product catalogue and its stock levels. It
// depends on a narrow ProductRepo so the catalogue can be faked in tests.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// DefaultMinimumStock applies when a product is created without one.
const DefaultMinimumStock = 5

// ProductRepo defines the repository contract required by ProductService.
type ProductRepo interface {
	CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error
	GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	ListLowStock(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error
	DeleteProduct(ctx context.Context, db *gorm.DB, id string) error
}

// ProductInput creates a product. A nil MinimumStock means DefaultMinimumStock.
type ProductInput struct {
	Name         string
	Price        float64
	CurrentStock int
	MinimumStock *int
}

// ProductPatch updates a product; nil fields are left unchanged.
type ProductPatch struct {
	Name         *string
	Price        *float64
	CurrentStock *int
	MinimumStock *int
}

// ProductService provides product CRUD and stock views.
type ProductService struct {
	DB   *gorm.DB
	Repo ProductRepo
}

// NewProductService constructs a ProductService.
func NewProductService(db *gorm.DB, r ProductRepo) *ProductService {
	return &ProductService{DB: db, Repo: r}
}

func validateProduct(p *domain.Product) error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if p.Price <= 0 {
		return ErrInvalidPrice
	}
	if p.CurrentStock < 0 || p.MinimumStock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// Create adds a product to the catalogue.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p := &domain.Product{
		Name:         normalizeSpace(in.Name),
		Price:        in.Price,
		CurrentStock: in.CurrentStock,
		MinimumStock: DefaultMinimumStock,
	}
	if in.MinimumStock != nil {
		p.MinimumStock = *in.MinimumStock
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateProduct(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateProduct
		}
		return nil, err
	}
	return p, nil
}

// Get returns a product by ID.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.Repo.GetProduct(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// List returns every product ordered by name.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.Repo.ListProducts(ctx, s.DB)
}

// Update applies patch to the product.
func (s *ProductService) Update(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = normalizeSpace(*patch.Name)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.CurrentStock != nil {
		p.CurrentStock = *patch.CurrentStock
	}
	if patch.MinimumStock != nil {
		p.MinimumStock = *patch.MinimumStock
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	switch err := s.Repo.UpdateProduct(ctx, s.DB, p); {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrProductNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicateProduct
	case err != nil:
		return nil, err
	}
	return p, nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteProduct(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}

// LowStock returns products at or below their minimum stock.
func (s *ProductService) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.Repo.ListLowStock(ctx, s.DB)
}

// StockAlerts returns one out-of-stock or low-stock entry per product that
// needs restocking.
func (s *ProductService) StockAlerts(ctx context.Context) ([]analytics.ProductStockAlert, error) {
	low, err := s.Repo.ListLowStock(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return analytics.ProductStockAlerts(low), nil
}
