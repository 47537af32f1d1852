// Product HTTP handlers.
//
//   - POST   /products               (create)
//   - GET    /products               (list, ETag)
//   - GET    /products/low-stock     (current_stock <= minimum_stock)
//   - GET    /products/stock-alerts  (out_of_stock / low_stock entries)
//   - GET    /products/{id}          (get)
//   - PUT    /products/{id}          (partial update)
//   - DELETE /products/{id}          (delete)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// CreateProductRequest is the payload for adding a product. A missing
// minimum_stock defaults to 5.
type CreateProductRequest struct {
	Name         string  `json:"name"          binding:"required,max=200" example:"Espresso beans 1kg"`
	Price        float64 `json:"price"         example:"18.5"`
	CurrentStock int     `json:"current_stock" example:"40"`
	MinimumStock *int    `json:"minimum_stock" example:"5"`
}

// UpdateProductRequest changes only the fields present.
type UpdateProductRequest struct {
	Name         *string  `json:"name" binding:"omitempty,max=200"`
	Price        *float64 `json:"price"`
	CurrentStock *int     `json:"current_stock"`
	MinimumStock *int     `json:"minimum_stock"`
}

// CreateProduct godoc
// @ID          createProduct
// @Summary     Create a product
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateProductRequest  true  "Product"
// @Success     201   {object}  domain.Product
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     409   {object}  handlers.ErrorResponse  "Name already in use"
// @Router      /products [post]
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	p, err := h.products.Create(c.Request.Context(), services.ProductInput{
		Name:         req.Name,
		Price:        req.Price,
		CurrentStock: req.CurrentStock,
		MinimumStock: req.MinimumStock,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List products
// @Description Ordered by name. Supports weak ETag via If-None-Match.
// @Tags        Products
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Product
// @Success     304  {string}  string  "Not Modified"
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	if h.notModified(c, "products", repo.ProductsStats, 0, 0) {
		return
	}
	items, err := h.products.List(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Product{}
	}
	ok(c, http.StatusOK, items)
}

// GetProduct godoc
// @ID          getProduct
// @Summary     Get a product
// @Tags        Products
// @Produce     json
// @Param       id   path      string  true  "Product ID"  format(uuid)
// @Success     200  {object}  domain.Product
// @Failure     404  {object}  handlers.ErrorResponse  "Product not found"
// @Router      /products/{id} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	id, valid := pathID(c, "product")
	if !valid {
		return
	}
	p, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProduct godoc
// @ID          updateProduct
// @Summary     Update a product
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       id    path      string                         true  "Product ID"  format(uuid)
// @Param       body  body      handlers.UpdateProductRequest  true  "Fields to change"
// @Success     200   {object}  domain.Product
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404   {object}  handlers.ErrorResponse  "Product not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Name already in use"
// @Router      /products/{id} [put]
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, valid := pathID(c, "product")
	if !valid {
		return
	}
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.products.Update(c.Request.Context(), id, services.ProductPatch{
		Name:         req.Name,
		Price:        req.Price,
		CurrentStock: req.CurrentStock,
		MinimumStock: req.MinimumStock,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeleteProduct godoc
// @ID          deleteProduct
// @Summary     Delete a product
// @Description Past purchases keep the product name.
// @Tags        Products
// @Param       id   path    string  true  "Product ID"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Product not found"
// @Router      /products/{id} [delete]
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, valid := pathID(c, "product")
	if !valid {
		return
	}
	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// LowStockProducts godoc
// @ID          lowStockProducts
// @Summary     Products at or below minimum stock
// @Tags        Products
// @Produce     json
// @Success     200  {array}  domain.Product
// @Router      /products/low-stock [get]
func (h *Handlers) LowStockProducts(c *gin.Context) {
	items, err := h.products.LowStock(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Product{}
	}
	ok(c, http.StatusOK, items)
}

// ProductStockAlerts godoc
// @ID          productStockAlerts
// @Summary     Per-product stock alerts
// @Description One entry per low-stock product, typed out_of_stock (stock <= 0) or low_stock.
// @Tags        Products
// @Produce     json
// @Success     200  {array}  analytics.ProductStockAlert
// @Router      /products/stock-alerts [get]
func (h *Handlers) ProductStockAlerts(c *gin.Context) {
	alerts, err := h.products.StockAlerts(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, alerts)
}
