// Purchase HTTP handlers.
//
//   - POST   /purchases       (create, honours Idempotency-Key)
//   - GET    /purchases       (list, paginated, ETag)
//   - GET    /purchases/{id}  (get)
//   - PUT    /purchases/{id}  (partial update)
//   - DELETE /purchases/{id}  (delete)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// HeaderIdempotencyReplayed is set to "true" when a create was answered from
// a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// CreatePurchaseRequest is the payload for recording a purchase. A missing
// purchased_at means now.
type CreatePurchaseRequest struct {
	ClientID    string     `json:"client_id"    binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	ProductName string     `json:"product_name" binding:"required,max=200" example:"Espresso beans 1kg"`
	Quantity    int        `json:"quantity"     example:"2"`
	UnitPrice   float64    `json:"unit_price"   example:"18.5"`
	PurchasedAt *time.Time `json:"purchased_at" example:"2025-06-14T10:30:00Z"`
}

// UpdatePurchaseRequest changes only the fields present.
type UpdatePurchaseRequest struct {
	ClientID    *string    `json:"client_id"    binding:"omitempty,uuid"`
	ProductName *string    `json:"product_name" binding:"omitempty,max=200"`
	Quantity    *int       `json:"quantity"`
	UnitPrice   *float64   `json:"unit_price"`
	PurchasedAt *time.Time `json:"purchased_at"`
}

// ListPurchasesResponse wraps a page of purchases.
type ListPurchasesResponse struct {
	Purchases  []services.PurchaseView `json:"purchases"`
	Pagination Pagination              `json:"pagination"`
}

// CreatePurchase godoc
// @ID          createPurchase
// @Summary     Record a purchase
// @Description Records a purchase, decrements the product's stock and recomputes the client's churn score and totals.
// @Description With Idempotency-Key, a retry returns the stored purchase and sets Idempotency-Replayed: true.
// @Tags        Purchases
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false  "Caller identity"
// @Param       Idempotency-Key  header  string  false  "Deduplicates retries for 24h"
// @Param       body             body    handlers.CreatePurchaseRequest  true  "Purchase"
// @Success     201  {object}  domain.Purchase
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse  "Client not found"
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Router      /purchases [post]
func (h *Handlers) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "client_id (UUID) and product_name are required")
		return
	}
	in := services.PurchaseInput{
		ClientID:    req.ClientID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		PurchasedAt: time.Now().UTC(),
	}
	if req.PurchasedAt != nil {
		in.PurchasedAt = *req.PurchasedAt
	}

	key, _ := middleware.GetIdempotencyKey(c)
	p, replay, err := h.purchases.CreateIdempotent(c.Request.Context(), middleware.UserID(c), key, in)
	if err != nil {
		failService(c, err)
		return
	}
	if replay {
		c.Header(HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, p)
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     List purchases (paginated)
// @Description Newest first, each with the client's name. Supports weak ETag via If-None-Match.
// @Tags        Purchases
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPurchasesResponse
// @Success     304  {string}  string  "Not Modified"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	page, pageSize := clampPagination(c)
	if h.notModified(c, "purchases", repo.PurchasesStats, page, pageSize) {
		return
	}
	items, total, err := h.purchases.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListPurchasesResponse{
		Purchases:  items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetPurchase godoc
// @ID          getPurchase
// @Summary     Get a purchase
// @Tags        Purchases
// @Produce     json
// @Param       id   path      string  true  "Purchase ID"  format(uuid)
// @Success     200  {object}  domain.Purchase
// @Failure     404  {object}  handlers.ErrorResponse  "Purchase not found"
// @Router      /purchases/{id} [get]
func (h *Handlers) GetPurchase(c *gin.Context) {
	id, valid := pathID(c, "purchase")
	if !valid {
		return
	}
	p, err := h.purchases.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePurchase godoc
// @ID          updatePurchase
// @Summary     Update a purchase
// @Description Applies the given fields, recomputes the total, and refreshes the metrics of the affected clients. Stock is not adjusted.
// @Tags        Purchases
// @Accept      json
// @Produce     json
// @Param       id    path      string                          true  "Purchase ID"  format(uuid)
// @Param       body  body      handlers.UpdatePurchaseRequest  true  "Fields to change"
// @Success     200   {object}  domain.Purchase
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404   {object}  handlers.ErrorResponse  "Purchase or client not found"
// @Router      /purchases/{id} [put]
func (h *Handlers) UpdatePurchase(c *gin.Context) {
	id, valid := pathID(c, "purchase")
	if !valid {
		return
	}
	var req UpdatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body or client_id")
		return
	}
	p, err := h.purchases.Update(c.Request.Context(), id, services.PurchasePatch{
		ClientID:    req.ClientID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		PurchasedAt: req.PurchasedAt,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePurchase godoc
// @ID          deletePurchase
// @Summary     Delete a purchase
// @Description Removes the purchase and recomputes the owning client's metrics.
// @Tags        Purchases
// @Param       id   path    string  true  "Purchase ID"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Purchase not found"
// @Router      /purchases/{id} [delete]
func (h *Handlers) DeletePurchase(c *gin.Context) {
	id, valid := pathID(c, "purchase")
	if !valid {
		return
	}
	if err := h.purchases.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
