// Advisory HTTP handlers. Each endpoint is rate limited per caller and kind;
// denials return 429 with RateLimitResponse, provider failures 502.
//
//   - POST /ai/churn-suggestions
//   - POST /ai/offer-suggestions
//   - POST /ai/pricing-suggestions
//   - POST /ai/restock-plan
//   - POST /ai/global-insights
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/http/middleware"
)

// ChurnSuggestionsRequest selects the client to advise on.
type ChurnSuggestionsRequest struct {
	ClientID string `json:"client_id" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// OfferSuggestionsRequest bounds how many loyal clients feed the advice.
type OfferSuggestionsRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=50" example:"5"`
}

// PricingSuggestionsRequest selects the product to price.
type PricingSuggestionsRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid" example:"7b0a4d8e-3c1f-4a52-9d6e-2f8b1c0e9a77"`
}

// ChurnSuggestions godoc
// @ID          churnSuggestions
// @Summary     Retention advice for a client
// @Tags        Advisory
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller identity"
// @Param       body       body    handlers.ChurnSuggestionsRequest  true  "Client"
// @Success     200  {object}  advisory.Advice
// @Failure     400  {object}  handlers.ErrorResponse      "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse      "Client not found"
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse      "Provider failure"
// @Router      /ai/churn-suggestions [post]
func (h *Handlers) ChurnSuggestions(c *gin.Context) {
	var req ChurnSuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "client_id (UUID) is required")
		return
	}
	advice, err := h.advisory.ChurnSuggestions(c.Request.Context(), middleware.UserID(c), req.ClientID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, advice)
}

// OfferSuggestions godoc
// @ID          offerSuggestions
// @Summary     Promotion ideas
// @Description Built from the 10 most recent purchases and the most loyal clients.
// @Tags        Advisory
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller identity"
// @Param       body       body    handlers.OfferSuggestionsRequest  false  "Options"
// @Success     200  {object}  advisory.Advice
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse      "Provider failure"
// @Router      /ai/offer-suggestions [post]
func (h *Handlers) OfferSuggestions(c *gin.Context) {
	var req OfferSuggestionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 50")
			return
		}
	}
	advice, err := h.advisory.OfferSuggestions(c.Request.Context(), middleware.UserID(c), req.Limit)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, advice)
}

// PricingSuggestions godoc
// @ID          pricingSuggestions
// @Summary     Pricing strategy for a product
// @Tags        Advisory
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller identity"
// @Param       body       body    handlers.PricingSuggestionsRequest  true  "Product"
// @Success     200  {object}  advisory.Advice
// @Failure     404  {object}  handlers.ErrorResponse      "Product not found"
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse      "Provider failure"
// @Router      /ai/pricing-suggestions [post]
func (h *Handlers) PricingSuggestions(c *gin.Context) {
	var req PricingSuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_id (UUID) is required")
		return
	}
	advice, err := h.advisory.PricingSuggestions(c.Request.Context(), middleware.UserID(c), req.ProductID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, advice)
}

// RestockPlan godoc
// @ID          restockPlan
// @Summary     Replenishment plan
// @Tags        Advisory
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller identity"
// @Success     200  {object}  advisory.Advice
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse      "Provider failure"
// @Router      /ai/restock-plan [post]
func (h *Handlers) RestockPlan(c *gin.Context) {
	advice, err := h.advisory.RestockPlan(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, advice)
}

// GlobalInsights godoc
// @ID          globalInsights
// @Summary     Strategic insights from the headline metrics
// @Tags        Advisory
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller identity"
// @Success     200  {object}  advisory.Advice
// @Failure     429  {object}  handlers.RateLimitResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse      "Provider failure"
// @Router      /ai/global-insights [post]
func (h *Handlers) GlobalInsights(c *gin.Context) {
	advice, err := h.advisory.GlobalInsights(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, advice)
}
