// Package handler provides the gin handlers and middleware of the PreAid gateway.
package handler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/auth"
	"github.com/hpn/preaid-gateway/internal/ui"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE CACHE - In-Memory Advice Caching
// ══════════════════════════════════════════════════════════════════════════════
//
// Key: SHA-256 of request path and body
// Value: serialized 200 response with TTL
//
// Identical anonymous questions within the TTL are answered without calling
// any provider. Authenticated requests are never cached.
//
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultCacheTTL is the default time-to-live for cache entries.
	DefaultCacheTTL = 5 * time.Minute

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval = 1 * time.Minute

	// MaxCacheableBodyBytes is the largest request body hashed for caching.
	MaxCacheableBodyBytes = 64 << 10
)

// CacheEntry represents a cached response with expiration time.
type CacheEntry struct {
	Response  []byte
	ExpireAt  time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the entry expired at now.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return now.After(e.ExpireAt)
}

// CacheObserver receives cache lookup results.
type CacheObserver interface {
	ObserveCache(hit bool)
}

// ResponseCache is a thread-safe in-memory cache for advice responses.
type ResponseCache struct {
	mu       sync.RWMutex
	entries  map[string]*CacheEntry
	ttl      time.Duration
	logger   *slog.Logger
	observer CacheObserver
	now      func() time.Time

	hits   int64
	misses int64
}

// CacheOption is a functional option for configuring ResponseCache.
type CacheOption func(*ResponseCache)

// WithCacheTTL sets a custom TTL for cache entries.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets a custom logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheObserver reports every lookup to o.
func WithCacheObserver(o CacheObserver) CacheOption {
	return func(c *ResponseCache) {
		c.observer = o
	}
}

// NewResponseCache creates an empty cache. Call Run to sweep expired entries.
func NewResponseCache(opts ...CacheOption) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]*CacheEntry),
		ttl:     DefaultCacheTTL,
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HashRequest returns the cache key of a request.
func HashRequest(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached response by key.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if exists && entry.IsExpired(c.now()) {
		delete(c.entries, key)
		exists = false
	}

	if !exists {
		c.misses++
		c.observe(false)
		return nil, false
	}

	c.hits++
	c.observe(true)
	return entry.Response, true
}

// Set stores a response in the cache with the configured TTL.
func (c *ResponseCache) Set(key string, response []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &CacheEntry{
		Response:  response,
		ExpireAt:  now.Add(c.ttl),
		CreatedAt: now,
	}
}

// Run sweeps expired entries every CleanupInterval until ctx is done.
func (c *ResponseCache) Run(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *ResponseCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0

	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug("cache cleanup",
			slog.Int("expired_entries", expired),
			slog.Int("remaining_entries", len(c.entries)),
		)
	}
}

// Stats returns cache hit/miss statistics.
func (c *ResponseCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}

func (c *ResponseCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// CacheMiddleware serves repeated advice requests from cache.
// Flow:
//  1. Skip requests carrying a bearer token (any scheme casing) or an
//     authenticated user
//  2. Hash path and body (SHA-256); bodies over MaxCacheableBodyBytes bypass
//  3. HIT → return the stored response
//  4. MISS → run the handler and store a 200 response
func CacheMiddleware(cache *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := cache.now()

		if c.Request.Method != http.MethodPost || isAuthenticated(c) {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxCacheableBodyBytes+1))
		if err != nil {
			c.Next()
			return
		}
		if int64(len(bodyBytes)) > MaxCacheableBodyBytes {
			c.Request.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(bodyBytes), c.Request.Body), c.Request.Body}
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		cacheKey := HashRequest(c.Request.URL.Path, bodyBytes)

		if cachedResponse, found := cache.Get(cacheKey); found {
			latency := cache.now().Sub(start)

			cache.logger.Info("cache hit",
				slog.String("cache_key", cacheKey[:12]+"..."),
				slog.String("path", c.Request.URL.Path),
			)
			ui.PrintCacheHit(cacheKey, latency)

			c.Set(ctxKeyCacheHit, true)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cachedResponse)
			c.Abort()
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			cache.Set(cacheKey, writer.body.Bytes())

			cache.logger.Debug("response cached",
				slog.String("cache_key", cacheKey[:12]+"..."),
				slog.Int("size_bytes", writer.body.Len()),
			)
		}
	}
}

// isAuthenticated reports whether the request belongs to a user, either
// resolved by OptionalAuthMiddleware or carrying a bearer token.
func isAuthenticated(c *gin.Context) bool {
	if _, ok := UserID(c); ok {
		return true
	}
	_, err := auth.TokenFromHeader(c.GetHeader("Authorization"))
	return err == nil
}

// responseWriter wraps gin.ResponseWriter to capture the response body.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write captures the response body while writing to the original writer.
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// WriteString captures string writes made by gin renderers.
func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
