package cache

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

func newCachedRouter(c *Cache, paths ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(c.Middleware(nil, paths...))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareServesCachedResponse(t *testing.T) {
	c := New(time.Minute)
	r := newCachedRouter(c, "/v1/score")

	calls := 0
	r.POST("/v1/score", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	first := postJSON(t, r, "/v1/score", `{"nodes":[]}`)
	second := postJSON(t, r, "/v1/score", `{"nodes":[]}`)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, calls, "second request should be served from cache")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestMiddlewareKeysOnPath(t *testing.T) {
	c := New(time.Minute)
	r := newCachedRouter(c, "/v1/score", "/v1/cluster")

	r.POST("/v1/score", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"kind": "score"})
	})
	r.POST("/v1/cluster", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"kind": "cluster"})
	})

	body := `{"nodes":[],"edges":[]}`
	score := postJSON(t, r, "/v1/score", body)
	cluster := postJSON(t, r, "/v1/cluster", body)

	require.Equal(t, http.StatusOK, score.Code)
	require.Equal(t, http.StatusOK, cluster.Code)
	assert.Contains(t, score.Body.String(), `"score"`)
	assert.Contains(t, cluster.Body.String(), `"cluster"`,
		"identical body on a different endpoint must not reuse the entry")
	assert.Equal(t, 2, c.Size())
}

func TestMiddlewareSkipsDistinctBodies(t *testing.T) {
	c := New(time.Minute)
	r := newCachedRouter(c, "/v1/score")

	calls := 0
	r.POST("/v1/score", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	postJSON(t, r, "/v1/score", `{"nodes":["a"]}`)
	postJSON(t, r, "/v1/score", `{"nodes":["b"]}`)
	assert.Equal(t, 2, calls)
}

func TestMiddlewareIgnoresErrorResponses(t *testing.T) {
	c := New(time.Minute)
	r := newCachedRouter(c, "/v1/score")

	r.POST("/v1/score", func(ctx *gin.Context) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad graph"})
	})

	postJSON(t, r, "/v1/score", `{}`)
	assert.Equal(t, 0, c.Size())
}

func TestGetExpiredEntryEvicts(t *testing.T) {
	c := New(-time.Second)
	c.Set("k", []byte("v"))

	_, found := c.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, c.Size())
}
