// Package handlers defines the machine-readable error codes returned in the
// ErrorResponse envelope. Clients branch on the code, not the message.
//
// Example:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "a client with this email already exists"
//	}
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeProviderFailure means the advisory provider failed or timed out.
	ErrCodeProviderFailure = "provider_failure"
)

// failService maps a service error onto the envelope. Unknown errors become
// 500 internal_error; their text is logged, not returned.
func failService(c *gin.Context, err error) {
	var (
		rl   *services.RateLimitedError
		perr *advisory.ProviderError
	)
	switch {
	case errors.As(err, &rl):
		failRateLimited(c, rl)
	case errors.As(err, &perr):
		fail(c, http.StatusBadGateway, ErrCodeProviderFailure, "advisory provider unavailable")
	case errors.Is(err, services.ErrClientNotFound),
		errors.Is(err, services.ErrPurchaseNotFound),
		errors.Is(err, services.ErrProductNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrDuplicateProduct):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidStock):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// failRateLimited writes 429 with the gate's limit, reset time and a
// Retry-After header in whole seconds.
func failRateLimited(c *gin.Context, e *services.RateLimitedError) {
	secs := int64((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", formatInt(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      ErrCodeRateLimited,
		Message:   "rate limit exceeded",
		Limit:     e.Limit,
		ResetTime: e.ResetTime.UTC(),
		Reason:    e.Reason,
	})
}
