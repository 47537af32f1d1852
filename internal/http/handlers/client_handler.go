// Client HTTP handlers.
//
//   - POST   /clients                (create)
//   - GET    /clients                (list, paginated, ETag)
//   - GET    /clients/churn-risk     (clients with churn score >= 0.6)
//   - GET    /clients/{id}           (get)
//   - PUT    /clients/{id}           (update profile)
//   - DELETE /clients/{id}           (delete with purchases)
//   - GET    /clients/{id}/purchases (purchase history)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// ClientRequest is the payload for creating or updating a client.
type ClientRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100" example:"Ana"`
	LastName  string `json:"last_name"  binding:"max=100"          example:"Silva"`
	Email     string `json:"email"      binding:"required,max=255" example:"ana@example.com"`
}

func (r ClientRequest) input() services.ClientInput {
	return services.ClientInput{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

// ListClientsResponse wraps a page of clients.
type ListClientsResponse struct {
	Clients    []domain.Client `json:"clients"`
	Pagination Pagination      `json:"pagination"`
}

// pathID reads and checks the :id path parameter. On failure it writes 400.
func pathID(c *gin.Context, what string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// CreateClient godoc
// @ID          createClient
// @Summary     Create a client
// @Description Registers a client. Email must be unique; metrics start at zero.
// @Tags        Clients
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ClientRequest  true  "Client"
// @Success     201   {object}  domain.Client
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already in use"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clients [post]
func (h *Handlers) CreateClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "first_name and email are required")
		return
	}
	cl, err := h.clients.Create(c.Request.Context(), req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, cl)
}

// ListClients godoc
// @ID          listClients
// @Summary     List clients (paginated)
// @Description Newest registrations first. Supports weak ETag via If-None-Match.
// @Tags        Clients
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListClientsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clients [get]
func (h *Handlers) ListClients(c *gin.Context) {
	page, pageSize := clampPagination(c)
	if h.notModified(c, "clients", repo.ClientsStats, page, pageSize) {
		return
	}
	items, total, err := h.clients.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListClientsResponse{
		Clients:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetClient godoc
// @ID          getClient
// @Summary     Get a client
// @Tags        Clients
// @Produce     json
// @Param       id   path      string  true  "Client ID"  format(uuid)
// @Success     200  {object}  domain.Client
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed ID"
// @Failure     404  {object}  handlers.ErrorResponse  "Client not found"
// @Router      /clients/{id} [get]
func (h *Handlers) GetClient(c *gin.Context) {
	id, valid := pathID(c, "client")
	if !valid {
		return
	}
	cl, err := h.clients.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, cl)
}

// UpdateClient godoc
// @ID          updateClient
// @Summary     Update a client profile
// @Description Replaces name and email. Derived metrics are not editable.
// @Tags        Clients
// @Accept      json
// @Produce     json
// @Param       id    path      string                  true  "Client ID"  format(uuid)
// @Param       body  body      handlers.ClientRequest  true  "Client"
// @Success     200   {object}  domain.Client
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404   {object}  handlers.ErrorResponse  "Client not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already in use"
// @Router      /clients/{id} [put]
func (h *Handlers) UpdateClient(c *gin.Context) {
	id, valid := pathID(c, "client")
	if !valid {
		return
	}
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "first_name and email are required")
		return
	}
	cl, err := h.clients.Update(c.Request.Context(), id, req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, cl)
}

// DeleteClient godoc
// @ID          deleteClient
// @Summary     Delete a client
// @Description Removes the client and all of their purchases.
// @Tags        Clients
// @Param       id   path    string  true  "Client ID"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Client not found"
// @Router      /clients/{id} [delete]
func (h *Handlers) DeleteClient(c *gin.Context) {
	id, valid := pathID(c, "client")
	if !valid {
		return
	}
	if err := h.clients.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ListClientPurchases godoc
// @ID          listClientPurchases
// @Summary     Purchase history of a client
// @Tags        Clients
// @Produce     json
// @Param       id   path      string  true  "Client ID"  format(uuid)
// @Success     200  {array}   domain.Purchase
// @Failure     404  {object}  handlers.ErrorResponse  "Client not found"
// @Router      /clients/{id}/purchases [get]
func (h *Handlers) ListClientPurchases(c *gin.Context) {
	id, valid := pathID(c, "client")
	if !valid {
		return
	}
	items, err := h.purchases.ListByClient(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Purchase{}
	}
	ok(c, http.StatusOK, items)
}

// ClientChurnRisk godoc
// @ID          clientChurnRisk
// @Summary     Clients at risk of churning
// @Description Clients with churn score >= 0.6, riskiest first, with risk level high (>= 0.8) or medium.
// @Tags        Clients
// @Produce     json
// @Param       limit  query     int  false  "Max entries"  minimum(1) maximum(100) default(20)
// @Success     200    {array}   services.ChurnRiskEntry
// @Router      /clients/churn-risk [get]
func (h *Handlers) ClientChurnRisk(c *gin.Context) {
	entries, err := h.clients.ChurnRisk(c.Request.Context(), queryLimit(c, 20, 100))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}
