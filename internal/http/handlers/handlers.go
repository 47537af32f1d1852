// Package handlers provides the HTTP handlers of the CRM API.
//
// Handlers are transport-thin: they bind and check the request shape, call a
// service through a narrow interface, and translate the result (or the
// service error, see failService) into a response.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/services"
	"github.com/tbourn/go-crm-backend/internal/utils"
)

// ClientService is the client contract consumed by the handlers.
type ClientService interface {
	Create(ctx context.Context, in services.ClientInput) (*domain.Client, error)
	Get(ctx context.Context, id string) (*domain.Client, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Client, int64, error)
	Update(ctx context.Context, id string, in services.ClientInput) (*domain.Client, error)
	Delete(ctx context.Context, id string) error
	ChurnRisk(ctx context.Context, limit int) ([]services.ChurnRiskEntry, error)
}

// PurchaseService is the purchase contract consumed by the handlers.
type PurchaseService interface {
	CreateIdempotent(ctx context.Context, userID, key string, in services.PurchaseInput) (*domain.Purchase, bool, error)
	Get(ctx context.Context, id string) (*domain.Purchase, error)
	ListPage(ctx context.Context, page, pageSize int) ([]services.PurchaseView, int64, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.Purchase, error)
	Update(ctx context.Context, id string, patch services.PurchasePatch) (*domain.Purchase, error)
	Delete(ctx context.Context, id string) error
}

// ProductService is the catalogue contract consumed by the handlers.
type ProductService interface {
	Create(ctx context.Context, in services.ProductInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, id string, patch services.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	LowStock(ctx context.Context) ([]domain.Product, error)
	StockAlerts(ctx context.Context) ([]analytics.ProductStockAlert, error)
}

// DashboardService is the analytics contract consumed by the handlers.
type DashboardService interface {
	Overview(ctx context.Context) (services.Overview, error)
	Metrics(ctx context.Context) (services.Metrics, error)
	Alerts(ctx context.Context) []domain.Alert
	TopClients(ctx context.Context, n int) ([]analytics.RankedClient, error)
	ChurnRisk(ctx context.Context, limit int) ([]services.ChurnRiskEntry, error)
	SalesChart(ctx context.Context) (services.SalesChart, error)
	SalesAnalytics(ctx context.Context, limit int) (services.SalesAnalytics, error)
}

// AdvisoryService is the advisory contract consumed by the handlers.
type AdvisoryService interface {
	ChurnSuggestions(ctx context.Context, userID, clientID string) (advisory.Advice, error)
	OfferSuggestions(ctx context.Context, userID string, limit int) (advisory.Advice, error)
	PricingSuggestions(ctx context.Context, userID, productID string) (advisory.Advice, error)
	RestockPlan(ctx context.Context, userID string) (advisory.Advice, error)
	GlobalInsights(ctx context.Context, userID string) (advisory.Advice, error)
}

// Services bundles the dependencies of Handlers.
type Services struct {
	Clients   ClientService
	Purchases PurchaseService
	Products  ProductService
	Dashboard DashboardService
	Advisory  AdvisoryService
}

// Handlers groups every endpoint of the API.
type Handlers struct {
	clients   ClientService
	purchases PurchaseService
	products  ProductService
	dashboard DashboardService
	advisory  AdvisoryService

	// etagDB enables weak ETags on list endpoints when set.
	etagDB *gorm.DB
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithETags enables weak ETags and 304 responses on list endpoints, computed
// from the row count and latest updated_at of the listed table.
func WithETags(db *gorm.DB) Option {
	return func(h *Handlers) { h.etagDB = db }
}

// New returns Handlers bound to svc.
func New(svc Services, opts ...Option) *Handlers {
	h := &Handlers{
		clients:   svc.Clients,
		purchases: svc.Purchases,
		products:  svc.Products,
		dashboard: svc.Dashboard,
		advisory:  svc.Advisory,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// clampPagination reads page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.Clamp(utils.AtoiDefault(c.Query("page"), 1), 1, utils.MaxInt)
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), 20), 1, 100)
	return page, pageSize
}

// queryLimit reads an optional positive "limit" query parameter.
func queryLimit(c *gin.Context, def, max int) int {
	return utils.Clamp(utils.AtoiDefault(c.Query("limit"), def), 1, max)
}

type statsFunc func(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)

// notModified sets a weak ETag for the listed table and page and reports
// whether If-None-Match matched, in which case 304 has been written. Stats
// failures just skip the ETag.
func (h *Handlers) notModified(c *gin.Context, table string, stats statsFunc, page, pageSize int) bool {
	if h.etagDB == nil {
		return false
	}
	count, maxTS, err := stats(c.Request.Context(), h.etagDB)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("table", table).Msg("etag stats failed")
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d:%d:%d"`, table, count, ts, page, pageSize)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
