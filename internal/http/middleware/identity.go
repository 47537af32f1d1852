package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderUserID carries the caller identity set by the upstream gateway.
	HeaderUserID = "X-User-ID"
	// AnonymousUser is the identity of requests without a usable X-User-ID.
	AnonymousUser = "anonymous"

	userIDKey       = "userID"
	maxUserIDLength = 128
)

// UserIdentity stores the caller identity under the "userID" context key.
// Authentication happens upstream; this middleware only trusts the header.
// Missing, oversized or non-printable values fall back to AnonymousUser so
// rate limits and idempotency records always have a stable owner.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, parseUserID(c.GetHeader(HeaderUserID)))
		c.Next()
	}
}

// UserID returns the identity stored by UserIdentity, or AnonymousUser.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousUser
}

func parseUserID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxUserIDLength {
		return AnonymousUser
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return AnonymousUser
		}
	}
	return id
}
