package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/analytics"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/services"
)

const (
	clientUUID  = "141add05-4415-4938-b5a1-17e0d3171aff"
	productUUID = "7b0a4d8e-3c1f-4a52-9d6e-2f8b1c0e9a77"
	otherUUID   = "0f5e7c2a-8b1d-4e3f-a6c9-d2b4e8f1a3c5"
)

// ---------- flexible service stubs ----------

type stubClients struct {
	create    func(context.Context, services.ClientInput) (*domain.Client, error)
	get       func(context.Context, string) (*domain.Client, error)
	listPage  func(context.Context, int, int) ([]domain.Client, int64, error)
	update    func(context.Context, string, services.ClientInput) (*domain.Client, error)
	del       func(context.Context, string) error
	churnRisk func(context.Context, int) ([]services.ChurnRiskEntry, error)
}

func (s stubClients) Create(ctx context.Context, in services.ClientInput) (*domain.Client, error) {
	if s.create != nil {
		return s.create(ctx, in)
	}
	return &domain.Client{ID: clientUUID, FirstName: in.FirstName, Email: in.Email}, nil
}

func (s stubClients) Get(ctx context.Context, id string) (*domain.Client, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Client{ID: id}, nil
}

func (s stubClients) ListPage(ctx context.Context, p, ps int) ([]domain.Client, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, p, ps)
	}
	return []domain.Client{}, 0, nil
}

func (s stubClients) Update(ctx context.Context, id string, in services.ClientInput) (*domain.Client, error) {
	if s.update != nil {
		return s.update(ctx, id, in)
	}
	return &domain.Client{ID: id, FirstName: in.FirstName, Email: in.Email}, nil
}

func (s stubClients) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

func (s stubClients) ChurnRisk(ctx context.Context, limit int) ([]services.ChurnRiskEntry, error) {
	if s.churnRisk != nil {
		return s.churnRisk(ctx, limit)
	}
	return []services.ChurnRiskEntry{}, nil
}

type stubPurchases struct {
	create       func(context.Context, string, string, services.PurchaseInput) (*domain.Purchase, bool, error)
	get          func(context.Context, string) (*domain.Purchase, error)
	listPage     func(context.Context, int, int) ([]services.PurchaseView, int64, error)
	listByClient func(context.Context, string) ([]domain.Purchase, error)
	update       func(context.Context, string, services.PurchasePatch) (*domain.Purchase, error)
	del          func(context.Context, string) error
}

func (s stubPurchases) CreateIdempotent(ctx context.Context, uid, key string, in services.PurchaseInput) (*domain.Purchase, bool, error) {
	if s.create != nil {
		return s.create(ctx, uid, key, in)
	}
	return &domain.Purchase{ID: otherUUID, ClientID: in.ClientID}, false, nil
}

func (s stubPurchases) Get(ctx context.Context, id string) (*domain.Purchase, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Purchase{ID: id}, nil
}

func (s stubPurchases) ListPage(ctx context.Context, p, ps int) ([]services.PurchaseView, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, p, ps)
	}
	return []services.PurchaseView{}, 0, nil
}

func (s stubPurchases) ListByClient(ctx context.Context, id string) ([]domain.Purchase, error) {
	if s.listByClient != nil {
		return s.listByClient(ctx, id)
	}
	return nil, nil
}

func (s stubPurchases) Update(ctx context.Context, id string, p services.PurchasePatch) (*domain.Purchase, error) {
	if s.update != nil {
		return s.update(ctx, id, p)
	}
	return &domain.Purchase{ID: id}, nil
}

func (s stubPurchases) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

type stubProducts struct {
	create func(context.Context, services.ProductInput) (*domain.Product, error)
	update func(context.Context, string, services.ProductPatch) (*domain.Product, error)
	del    func(context.Context, string) error
	list   []domain.Product
	low    []domain.Product
}

func (s stubProducts) Create(ctx context.Context, in services.ProductInput) (*domain.Product, error) {
	if s.create != nil {
		return s.create(ctx, in)
	}
	return &domain.Product{ID: productUUID, Name: in.Name}, nil
}

func (s stubProducts) Get(_ context.Context, id string) (*domain.Product, error) {
	return &domain.Product{ID: id}, nil
}

func (s stubProducts) List(context.Context) ([]domain.Product, error) { return s.list, nil }

func (s stubProducts) Update(ctx context.Context, id string, p services.ProductPatch) (*domain.Product, error) {
	if s.update != nil {
		return s.update(ctx, id, p)
	}
	return &domain.Product{ID: id}, nil
}

func (s stubProducts) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

func (s stubProducts) LowStock(context.Context) ([]domain.Product, error) { return s.low, nil }

func (s stubProducts) StockAlerts(context.Context) ([]analytics.ProductStockAlert, error) {
	return analytics.ProductStockAlerts(s.low), nil
}

type stubDashboard struct {
	overviewErr error
	alerts      []domain.Alert
	topLimit    *int
}

func (s stubDashboard) Overview(context.Context) (services.Overview, error) {
	if s.overviewErr != nil {
		return services.Overview{}, s.overviewErr
	}
	return services.Overview{Metrics: services.Metrics{TotalClients: 3}}, nil
}

func (s stubDashboard) Metrics(context.Context) (services.Metrics, error) {
	return services.Metrics{TotalClients: 3, TotalRevenue: 120}, nil
}

func (s stubDashboard) Alerts(context.Context) []domain.Alert { return s.alerts }

func (s stubDashboard) TopClients(_ context.Context, n int) ([]analytics.RankedClient, error) {
	if s.topLimit != nil {
		*s.topLimit = n
	}
	return []analytics.RankedClient{{Ranking: 1, LoyaltyScore: 0.9}}, nil
}

func (s stubDashboard) ChurnRisk(context.Context, int) ([]services.ChurnRiskEntry, error) {
	return []services.ChurnRiskEntry{{RiskLevel: "high"}}, nil
}

func (s stubDashboard) SalesChart(context.Context) (services.SalesChart, error) {
	return services.SalesChart{Labels: []string{"14/06", "15/06"}}, nil
}

func (s stubDashboard) SalesAnalytics(_ context.Context, limit int) (services.SalesAnalytics, error) {
	return services.SalesAnalytics{TotalSales: int64(limit)}, nil
}

type stubAdvisory struct {
	err      error
	lastUser string
	lastArg  string
	calls    *[]string
}

func (s *stubAdvisory) answer(kind advisory.Kind, user, arg string) (advisory.Advice, error) {
	s.lastUser, s.lastArg = user, arg
	if s.calls != nil {
		*s.calls = append(*s.calls, string(kind))
	}
	if s.err != nil {
		return advisory.Advice{}, s.err
	}
	return advisory.Advice{Kind: kind, Text: "do this"}, nil
}

func (s *stubAdvisory) ChurnSuggestions(_ context.Context, u, id string) (advisory.Advice, error) {
	return s.answer(advisory.KindChurn, u, id)
}

func (s *stubAdvisory) OfferSuggestions(_ context.Context, u string, limit int) (advisory.Advice, error) {
	return s.answer(advisory.KindOffers, u, formatInt(int64(limit)))
}

func (s *stubAdvisory) PricingSuggestions(_ context.Context, u, id string) (advisory.Advice, error) {
	return s.answer(advisory.KindPricing, u, id)
}

func (s *stubAdvisory) RestockPlan(_ context.Context, u string) (advisory.Advice, error) {
	return s.answer(advisory.KindRestock, u, "")
}

func (s *stubAdvisory) GlobalInsights(_ context.Context, u string) (advisory.Advice, error) {
	return s.answer(advisory.KindInsights, u, "")
}

// ---------- router helpers ----------

// newTestRouter mounts every handler the way the production router does,
// minus observability middleware.
func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.UserIdentity(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	r.POST("/clients", h.CreateClient)
	r.GET("/clients", h.ListClients)
	r.GET("/clients/churn-risk", h.ClientChurnRisk)
	r.GET("/clients/:id", h.GetClient)
	r.PUT("/clients/:id", h.UpdateClient)
	r.DELETE("/clients/:id", h.DeleteClient)
	r.GET("/clients/:id/purchases", h.ListClientPurchases)

	r.POST("/purchases", h.CreatePurchase)
	r.GET("/purchases", h.ListPurchases)
	r.GET("/purchases/:id", h.GetPurchase)
	r.PUT("/purchases/:id", h.UpdatePurchase)
	r.DELETE("/purchases/:id", h.DeletePurchase)

	r.POST("/products", h.CreateProduct)
	r.GET("/products", h.ListProducts)
	r.GET("/products/low-stock", h.LowStockProducts)
	r.GET("/products/stock-alerts", h.ProductStockAlerts)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)

	r.GET("/dashboard", h.Dashboard)
	r.GET("/dashboard/metrics", h.DashboardMetrics)
	r.GET("/dashboard/alerts", h.DashboardAlerts)
	r.GET("/dashboard/top-clients", h.TopClients)
	r.GET("/dashboard/churn-risk", h.DashboardChurnRisk)
	r.GET("/dashboard/sales-chart", h.SalesChart)
	r.GET("/analytics/sales", h.SalesAnalytics)

	r.POST("/ai/churn-suggestions", h.ChurnSuggestions)
	r.POST("/ai/offer-suggestions", h.OfferSuggestions)
	r.POST("/ai/pricing-suggestions", h.PricingSuggestions)
	r.POST("/ai/restock-plan", h.RestockPlan)
	r.POST("/ai/global-insights", h.GlobalInsights)
	return r
}

func defaultServices() Services {
	return Services{
		Clients:   stubClients{},
		Purchases: stubPurchases{},
		Products:  stubProducts{},
		Dashboard: stubDashboard{},
		Advisory:  &stubAdvisory{},
	}
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("want status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("want code %q, got %+v", code, er)
	}
}
