// Dashboard and analytics HTTP handlers. Every view is computed on request.
//
//   - GET /dashboard               (all views at once)
//   - GET /dashboard/metrics
//   - GET /dashboard/alerts
//   - GET /dashboard/top-clients
//   - GET /dashboard/churn-risk
//   - GET /dashboard/sales-chart
//   - GET /analytics/sales
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard godoc
// @ID          dashboard
// @Summary     Dashboard overview
// @Description Metrics, alerts, top 5 loyal clients, top 5 churn risks, stock alerts and the 7-day sales chart.
// @Tags        Dashboard
// @Produce     json
// @Success     200  {object}  services.Overview
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dashboard [get]
func (h *Handlers) Dashboard(c *gin.Context) {
	o, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// DashboardMetrics godoc
// @ID          dashboardMetrics
// @Summary     Headline counters
// @Tags        Dashboard
// @Produce     json
// @Success     200  {object}  services.Metrics
// @Router      /dashboard/metrics [get]
func (h *Handlers) DashboardMetrics(c *gin.Context) {
	m, err := h.dashboard.Metrics(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DashboardAlerts godoc
// @ID          dashboardAlerts
// @Summary     Operational alerts
// @Description Churn, stock, sales velocity and acquisition alerts. Alerts are not stored; IDs change on every read.
// @Tags        Dashboard
// @Produce     json
// @Success     200  {array}  domain.Alert
// @Router      /dashboard/alerts [get]
func (h *Handlers) DashboardAlerts(c *gin.Context) {
	ok(c, http.StatusOK, h.dashboard.Alerts(c.Request.Context()))
}

// TopClients godoc
// @ID          topClients
// @Summary     Most loyal clients
// @Tags        Dashboard
// @Produce     json
// @Param       limit  query    int  false  "Max entries"  minimum(1) maximum(50) default(5)
// @Success     200    {array}  analytics.RankedClient
// @Router      /dashboard/top-clients [get]
func (h *Handlers) TopClients(c *gin.Context) {
	ranked, err := h.dashboard.TopClients(c.Request.Context(), queryLimit(c, 5, 50))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ranked)
}

// DashboardChurnRisk godoc
// @ID          dashboardChurnRisk
// @Summary     Riskiest clients
// @Tags        Dashboard
// @Produce     json
// @Param       limit  query    int  false  "Max entries"  minimum(1) maximum(50) default(5)
// @Success     200    {array}  services.ChurnRiskEntry
// @Router      /dashboard/churn-risk [get]
func (h *Handlers) DashboardChurnRisk(c *gin.Context) {
	entries, err := h.dashboard.ChurnRisk(c.Request.Context(), queryLimit(c, 5, 50))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}

// SalesChart godoc
// @ID          salesChart
// @Summary     Daily sales chart
// @Description Orders and revenue per day for the last 7 days, oldest first, labelled dd/mm.
// @Tags        Dashboard
// @Produce     json
// @Success     200  {object}  services.SalesChart
// @Router      /dashboard/sales-chart [get]
func (h *Handlers) SalesChart(c *gin.Context) {
	chart, err := h.dashboard.SalesChart(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, chart)
}

// SalesAnalytics godoc
// @ID          salesAnalytics
// @Summary     Sales analytics
// @Description Total sales, total and current-month revenue, and the best-selling products.
// @Tags        Analytics
// @Produce     json
// @Param       limit  query     int  false  "Top products"  minimum(1) maximum(100) default(10)
// @Success     200    {object}  services.SalesAnalytics
// @Router      /analytics/sales [get]
func (h *Handlers) SalesAnalytics(c *gin.Context) {
	out, err := h.dashboard.SalesAnalytics(c.Request.Context(), queryLimit(c, 10, 100))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
