package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hpn/preaid-gateway/internal/auth"
	"github.com/hpn/preaid-gateway/internal/ui"
)

// Context keys shared between handlers and middleware.
const (
	ctxKeyRequestID = "request_id"
	ctxKeyUserID    = "user_id"
	ctxKeyProvider  = "provider"
	ctxKeyRetried   = "retried"
	ctxKeyCacheHit  = "cache_hit"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 64

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// CORSMiddleware returns a middleware that enables permissive CORS for the
// browser client.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Cache")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware propagates a caller-supplied X-Request-ID or assigns a
// new UUID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Set(ctxKeyRequestID, id)
		c.Header(HeaderRequestID, id)

		c.Next()
	}
}

// LoggingMiddleware logs one structured line per request, including the
// provider that answered.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", latency),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", c.GetString(ctxKeyRequestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if provider := c.GetString(ctxKeyProvider); provider != "" {
			attrs = append(attrs, slog.String("provider", provider))
		}
		if c.GetBool(ctxKeyRetried) {
			attrs = append(attrs, slog.Bool("retried", true))
		}
		if c.GetBool(ctxKeyCacheHit) {
			attrs = append(attrs, slog.Bool("cache_hit", true))
		}

		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// ConsoleMiddleware prints a coloured line per request.
func ConsoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ui.PrintRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(ctxKeyProvider))
	}
}

// RecoveryMiddleware recovers from panics and answers 500.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("request_id", c.GetString(ctxKeyRequestID)),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}

// AuthMiddleware requires a valid bearer token and stores the user id on the
// context. A missing token or the literal "Guest" is rejected.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxKeyUserID, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware stores the user id when a valid bearer token is
// present and lets every request through.
func OptionalAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromHeader(c.GetHeader("Authorization"))
		if err == nil {
			userID, verr := verifier.Verify(token)
			switch {
			case verr == nil:
				c.Set(ctxKeyUserID, userID)
			case errors.Is(verr, auth.ErrInvalidToken):
				logger.Debug("ignoring invalid token on public route",
					slog.String("path", c.Request.URL.Path),
				)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(ctxKeyUserID)
	return id, id != ""
}
