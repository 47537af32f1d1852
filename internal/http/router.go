// Package httpapi wires the HTTP transport (Gin) to the CRM services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/config"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/handlers"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/ratelimit"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Deps are the long-lived collaborators built by the caller. Nil advisory
// parts are replaced with in-process defaults derived from cfg.
type Deps struct {
	DB       *gorm.DB
	Gateway  *advisory.Gateway
	Prompter *advisory.Prompter
	Gate     *ratelimit.SlidingWindow
}

// productRepoShim adapts the repository free functions to the
// services.ProductRepo interface expected by the ProductService.
type productRepoShim struct{}

func (productRepoShim) CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return repo.CreateProduct(ctx, db, p)
}

func (productRepoShim) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}

func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}

func (productRepoShim) ListLowStock(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListLowStock(ctx, db)
}

func (productRepoShim) UpdateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return repo.UpdateProduct(ctx, db, p)
}

func (productRepoShim) DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteProduct(ctx, db, id)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r and mounts
// the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID and UserIdentity: correlation id and caller
//  3. RedactingLogger: access log plus request-scoped logger
//  4. Recovery: capture panics after logger
//  5. Body size limit and gzip
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Edge rate limiter (per user, or per IP for anonymous callers)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	r.Use(middleware.RequestID())
	r.Use(middleware.UserIdentity())

	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	r.Use(middleware.Recovery())

	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	purchasesRoute := strings.TrimRight(apiBase, "/") + "/purchases"
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == purchasesRoute {
					return services.ScopePurchaseCreate
				}
				return ""
			},
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Client records and advisory answers carry personal data.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{joinPath(apiBase, "/clients"), joinPath(apiBase, "/ai")},
		EnablePolicy:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(buildServices(deps, cfg), handlers.WithETags(db))

	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/clients", h.CreateClient)
		api.GET("/clients", h.ListClients)
		api.GET("/clients/churn-risk", h.ClientChurnRisk)
		api.GET("/clients/:id", h.GetClient)
		api.PUT("/clients/:id", h.UpdateClient)
		api.DELETE("/clients/:id", h.DeleteClient)
		api.GET("/clients/:id/purchases", h.ListClientPurchases)

		api.POST("/purchases", h.CreatePurchase)
		api.GET("/purchases", h.ListPurchases)
		api.GET("/purchases/:id", h.GetPurchase)
		api.PUT("/purchases/:id", h.UpdatePurchase)
		api.DELETE("/purchases/:id", h.DeletePurchase)

		api.POST("/products", h.CreateProduct)
		api.GET("/products", h.ListProducts)
		api.GET("/products/low-stock", h.LowStockProducts)
		api.GET("/products/stock-alerts", h.ProductStockAlerts)
		api.GET("/products/:id", h.GetProduct)
		api.PUT("/products/:id", h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)

		api.GET("/dashboard", h.Dashboard)
		api.GET("/dashboard/metrics", h.DashboardMetrics)
		api.GET("/dashboard/alerts", h.DashboardAlerts)
		api.GET("/dashboard/top-clients", h.TopClients)
		api.GET("/dashboard/churn-risk", h.DashboardChurnRisk)
		api.GET("/dashboard/sales-chart", h.SalesChart)
		api.GET("/analytics/sales", h.SalesAnalytics)

		api.POST("/ai/churn-suggestions", h.ChurnSuggestions)
		api.POST("/ai/offer-suggestions", h.OfferSuggestions)
		api.POST("/ai/pricing-suggestions", h.PricingSuggestions)
		api.POST("/ai/restock-plan", h.RestockPlan)
		api.POST("/ai/global-insights", h.GlobalInsights)
	}
}

// buildServices constructs every service from deps and the configured
// policies.
func buildServices(deps Deps, cfg config.Config) handlers.Services {
	db := deps.DB
	a := cfg.Analytics

	loc, err := time.LoadLocation(a.SalesTimezone)
	if err != nil || a.SalesTimezone == "" {
		loc = time.UTC
	}

	churn := analytics.DefaultChurnPolicy()
	if a.ChurnNoHistoryScore > 0 {
		churn.NoHistoryScore = a.ChurnNoHistoryScore
	}
	if a.ChurnRecencyDays > 0 {
		churn.RecencyDays = a.ChurnRecencyDays
	}
	if a.ChurnFrequencyPurchases > 0 {
		churn.FrequencyPurchases = a.ChurnFrequencyPurchases
	}

	loyalty := analytics.DefaultLoyaltyPolicy()
	if a.LoyaltyValueScale > 0 {
		loyalty.ValueScale = a.LoyaltyValueScale
	}

	rules := analytics.DefaultAlertPolicy()
	if a.AlertChurnThreshold > 0 {
		rules.ChurnThreshold = a.AlertChurnThreshold
	}
	if a.AlertSalesWindow > 0 {
		rules.SalesWindow = a.AlertSalesWindow
	}
	if a.AlertSalesMin > 0 {
		rules.MinSales = a.AlertSalesMin
	}
	if a.AlertAcquisitionWindow > 0 {
		rules.AcquisitionWindow = a.AlertAcquisitionWindow
	}

	scores := &services.ScoreService{DB: db, Policy: churn, Now: time.Now}
	dashboard := services.NewDashboardService(db)
	dashboard.Rules = rules
	dashboard.Loyalty = loyalty
	dashboard.Loc = loc

	gateway := deps.Gateway
	if gateway == nil {
		gateway = advisory.NewGateway(
			advisory.NewCache(advisory.NewMemoryStore(), nil),
			advisory.NewChatClient(advisory.ChatOptions{
				BaseURL:     cfg.AI.BaseURL,
				APIKey:      cfg.AI.APIKey,
				Model:       cfg.AI.Model,
				MaxTokens:   cfg.AI.MaxTokens,
				Temperature: cfg.AI.Temperature,
				Timeout:     cfg.AI.Timeout,
			}),
			cfg.AI.CacheTTL,
		)
	}
	prompter := deps.Prompter
	if prompter == nil {
		tag, err := language.Parse(cfg.AI.Locale)
		if err != nil {
			tag = language.English
		}
		prompter = advisory.NewPrompter(tag)
	}
	gate := deps.Gate
	if gate == nil {
		gate = ratelimit.New()
	}

	return handlers.Services{
		Clients:   &services.ClientService{DB: db},
		Purchases: services.NewPurchaseService(db, scores, cfg.IdempotencyTTL),
		Products:  services.NewProductService(db, productRepoShim{}),
		Dashboard: dashboard,
		Advisory: &services.AdvisoryService{
			DB:        db,
			Gateway:   gateway,
			Prompter:  prompter,
			Gate:      gate,
			Dashboard: dashboard,
			Limit:     cfg.AI.RateLimit,
			Window:    cfg.AI.RateWindow,
		},
	}
}

// limitBody caps the request body at maxBytes; larger bodies fail to bind.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	return strings.TrimRight(base, "/") + p
}
