// Package cache is a TTL response cache for the scoring and clustering
// endpoints. Both engines are deterministic, so an identical request body
// always produces an identical response and can be served from memory.
package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics is the counter surface the cache reports into.
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// Item is one cached response body.
type Item struct {
	Data      []byte
	ExpiresAt time.Time
}

// IsExpired reports whether the item is past its TTL.
func (i *Item) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// Cache is a thread-safe TTL cache. The middleware keys entries on a
// path-scoped request-body digest.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	ttl   time.Duration
}

// New creates a cache and starts its cleanup goroutine.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*Item),
		ttl:   ttl,
	}
	go c.cleanup()
	return c
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		for key, item := range c.items {
			if item.IsExpired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// Key digests a request body into a cache key. The digest covers the full
// snapshot and config, so any input change misses.
func Key(body []byte) string {
	return fmt.Sprintf("%x", md5.Sum(body))
}

// Get returns the cached bytes for a key, if present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}
	if item.IsExpired() {
		c.Delete(key)
		return nil, false
	}
	return item.Data, true
}

// Set stores bytes under a key with the cache TTL.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &Item{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
}

// Size returns the number of entries, expired included.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Middleware serves cached responses for the given POST paths. Only 200
// responses are stored.
func (c *Cache) Middleware(metrics Metrics, paths ...string) gin.HandlerFunc {
	cacheable := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		cacheable[p] = struct{}{}
	}

	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost {
			ctx.Next()
			return
		}
		if _, ok := cacheable[ctx.Request.URL.Path]; !ok {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		// Scope the digest to the path: the same snapshot posted to two
		// endpoints must never share an entry.
		key := Key(append([]byte(ctx.Request.URL.Path+"\n"), body...))
		if data, found := c.Get(key); found {
			if metrics != nil {
				metrics.IncrementCacheHit()
			}
			ctx.Data(http.StatusOK, "application/json", data)
			ctx.Abort()
			return
		}
		if metrics != nil {
			metrics.IncrementCacheMiss()
		}

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK {
			c.Set(key, wrapper.body.Bytes())
		}
	}
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
