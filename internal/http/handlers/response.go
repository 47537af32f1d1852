// Package handlers provides the HTTP handlers of the CRM API.
//
// This file holds the shared response envelopes and writers. Every error is
// an ErrorResponse with a stable code; 5xx responses are also logged with the
// request-scoped logger.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"client not found"`
}

// RateLimitResponse is the 429 body. Reason names the limit that tripped,
// e.g. "ai_churn" or "edge".
type RateLimitResponse struct {
	RequestID string    `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string    `json:"code" example:"too_many_requests"`
	Message   string    `json:"message" example:"rate limit exceeded"`
	Limit     int       `json:"limit" example:"60"`
	ResetTime time.Time `json:"reset_time" example:"2025-06-15T12:01:00Z"`
	Reason    string    `json:"reason" example:"ai_churn"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.Last().Error())
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes an ErrorResponse. The router uses it for 404/405 fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }
