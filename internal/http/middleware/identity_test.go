package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestUserIdentity_HeaderAndFallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(UserIdentity())
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"present", "u-42", "u-42"},
		{"trimmed", "  u-7  ", "u-7"},
		{"missing", "", AnonymousUser},
		{"too long", strings.Repeat("x", maxUserIDLength+1), AnonymousUser},
		{"inner space", "bad user", AnonymousUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set(HeaderUserID, tc.header)
			}
			r.ServeHTTP(w, req)
			if got := w.Body.String(); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestUserID_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := UserID(c); got != AnonymousUser {
		t.Fatalf("want %q, got %q", AnonymousUser, got)
	}
	c.Set(userIDKey, 42)
	if got := UserID(c); got != AnonymousUser {
		t.Fatalf("non-string identity should fall back, got %q", got)
	}
}
