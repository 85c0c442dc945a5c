// Package security guards the HTTP surface: request timeouts, body size
// caps, content-type validation and JWT gating of admin endpoints.
package security

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Config holds security middleware configuration.
type Config struct {
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
	AdminSecret    string        `json:"-"`
}

// DefaultConfig returns conservative defaults. Snapshot payloads can be
// large, so the body cap is generous.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   32 << 20, // 32 MiB
		RequestTimeout: 60 * time.Second,
		AdminSecret:    os.Getenv("ADMIN_JWT_SECRET"),
	}
}

// Middleware bundles the security handlers.
type Middleware struct {
	config Config
}

// NewMiddleware creates a security middleware instance.
func NewMiddleware(config Config) *Middleware {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Middleware{config: config}
}

// RequestTimeout replaces the request context with a deadline-bound one
// so long scoring runs are cancelled rather than left running.
func (m *Middleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), m.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(m.config.RequestTimeout.Seconds())))
	c.Next()
}

// LimitBodySize caps request body reads at the configured maximum.
func (m *Middleware) LimitBodySize(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.config.MaxBodyBytes)
	}
	c.Next()
}

// ValidateContentType rejects non-JSON bodies on mutating requests.
func (m *Middleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "application/json") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "unsupported content type, expected application/json",
		})
		c.Abort()
		return
	}
	c.Next()
}

// AdminAuth requires a valid HS256 bearer token with role "admin".
// When no admin secret is configured the gated endpoints are disabled.
func (m *Middleware) AdminAuth(c *gin.Context) {
	if m.config.AdminSecret == "" {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "admin endpoints are disabled, no admin secret configured",
		})
		c.Abort()
		return
	}

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		c.Abort()
		return
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.config.AdminSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	if role, _ := claims["role"].(string); role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		c.Abort()
		return
	}

	if sub, _ := claims["sub"].(string); sub != "" {
		c.Set("admin_subject", sub)
	}
	c.Next()
}

// IssueAdminToken mints a short-lived admin token. Used by the CLI and
// by tests, never exposed over HTTP.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
