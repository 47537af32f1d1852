// Package services defines the business logic for clients, purchases,
// products, analytics, and advisory requests. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

// NotFound errors.
var (
	// ErrClientNotFound indicates that the referenced client does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrPurchaseNotFound indicates that the referenced purchase does not exist.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrProductNotFound indicates that the referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")
)

// Conflict errors.
var (
	// ErrDuplicateEmail is returned when another client already uses the email.
	ErrDuplicateEmail = errors.New("a client with this email already exists")

	// ErrDuplicateProduct is returned when another product already uses the name.
	ErrDuplicateProduct = errors.New("a product with this name already exists")
)

// Validation errors.
var (
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidEmail    = errors.New("email is invalid")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrInvalidStock    = errors.New("stock levels cannot be negative")
)

// RateLimitedError reports an advisory request denied by the sliding-window
// gate. It carries everything a caller needs to back off.
type RateLimitedError struct {
	Identity   string
	Reason     string
	Limit      int
	Window     time.Duration
	ResetTime  time.Time
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests per %s, resets at %s",
		e.Reason, e.Limit, e.Window, e.ResetTime.UTC().Format(time.RFC3339))
}
