package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(mw *Middleware, gate bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw.RequestTimeout, mw.LimitBodySize, mw.ValidateContentType)
	handler := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	if gate {
		r.POST("/admin", mw.AdminAuth, handler)
	}
	r.POST("/echo", handler)
	r.GET("/ping", handler)
	return r
}

func TestValidateContentType(t *testing.T) {
	mw := NewMiddleware(DefaultConfig())
	router := newTestRouter(mw, false)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		wantStatus  int
	}{
		{"json accepted", http.MethodPost, "/echo", "application/json", http.StatusOK},
		{"json with charset accepted", http.MethodPost, "/echo", "application/json; charset=utf-8", http.StatusOK},
		{"missing content type accepted", http.MethodPost, "/echo", "", http.StatusOK},
		{"form rejected", http.MethodPost, "/echo", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"get ignores content type", http.MethodGet, "/ping", "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequestTimeoutHeader(t *testing.T) {
	mw := NewMiddleware(Config{RequestTimeout: 30 * time.Second})
	router := newTestRouter(mw, false)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-Timeout"))
}

func TestAdminAuth(t *testing.T) {
	const secret = "test-secret"

	mw := NewMiddleware(Config{AdminSecret: secret})
	router := newTestRouter(mw, true)

	valid, err := IssueAdminToken(secret, "ops", time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueAdminToken("other-secret", "ops", time.Minute)
	require.NoError(t, err)
	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer token", "Basic abc", http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAdminAuthDisabledWithoutSecret(t *testing.T) {
	mw := NewMiddleware(Config{})
	router := newTestRouter(mw, true)

	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}
