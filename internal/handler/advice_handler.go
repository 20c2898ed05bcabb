package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/advice"
	"github.com/hpn/preaid-gateway/internal/dispatch"
	"github.com/hpn/preaid-gateway/internal/domain"
	"github.com/hpn/preaid-gateway/internal/history"
	"github.com/hpn/preaid-gateway/internal/ui"
)

// statusClientClosedRequest is logged when the caller went away mid-dispatch.
const statusClientClosedRequest = 499

// Adviser produces advice for a request.
type Adviser interface {
	Advise(ctx context.Context, req advice.Request) (advice.Response, error)
}

// StatusReporter exposes the construction-time provider availability.
type StatusReporter interface {
	ProviderStatus() domain.ProviderStatus
}

// AdviceHandler serves the advice, provider status and health endpoints.
type AdviceHandler struct {
	adviser        Adviser
	status         StatusReporter
	store          history.Store
	requestTimeout time.Duration
	logger         *slog.Logger
}

// AdviceHandlerOption is a functional option for configuring AdviceHandler.
type AdviceHandlerOption func(*AdviceHandler)

// WithRequestTimeout bounds one advice request including the retry.
// Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) AdviceHandlerOption {
	return func(h *AdviceHandler) {
		if timeout >= 0 {
			h.requestTimeout = timeout
		}
	}
}

// WithHistoryStore saves every answered question of an authenticated user.
func WithHistoryStore(store history.Store) AdviceHandlerOption {
	return func(h *AdviceHandler) {
		h.store = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AdviceHandlerOption {
	return func(h *AdviceHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewAdviceHandler creates a new AdviceHandler.
func NewAdviceHandler(adviser Adviser, status StatusReporter, opts ...AdviceHandlerOption) *AdviceHandler {
	h := &AdviceHandler{
		adviser: adviser,
		status:  status,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// chatRequest is the body of POST /api/chat. Older clients of
// /api/health-advice send the question as "issue".
type chatRequest struct {
	advice.Request
	Issue string `json:"issue"`
}

// HandleChat handles POST /api/chat and POST /api/health-advice.
func (h *AdviceHandler) HandleChat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	req := body.Request
	if strings.TrimSpace(req.Message) == "" {
		req.Message = body.Issue
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	ctx := c.Request.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	resp, err := h.adviser.Advise(ctx, req)
	if err != nil {
		h.writeAdviceError(c, err)
		return
	}

	c.Set(ctxKeyProvider, string(resp.Provider))
	c.Set(ctxKeyRetried, resp.Retried)

	if userID, ok := UserID(c); ok && h.store != nil {
		h.saveConsultation(ctx, userID, req.Message, resp.Advice)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdviceHandler) writeAdviceError(c *gin.Context, err error) {
	requestID := c.GetString(ctxKeyRequestID)

	var allFailed *dispatch.AllProvidersFailedError
	switch {
	case errors.Is(err, advice.ErrEmptyMessage), errors.Is(err, dispatch.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})

	case errors.Is(err, dispatch.ErrNoProviderConfigured):
		h.logger.Error("no AI provider configured", slog.String("request_id", requestID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "No AI providers configured",
			"details":   "Please add at least one API key to environment variables",
			"providers": h.status.ProviderStatus(),
		})

	case errors.As(err, &allFailed):
		h.logger.Error("advice request failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		ui.PrintProvidersFailed(allFailed.Failures)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "AI service temporarily unavailable",
			"details":   "All AI services are currently unavailable. Please try again in a few minutes.",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("advice request timed out", slog.String("request_id", requestID))
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "AI service timed out",
			"details": "The request took too long. Please try again.",
		})

	case errors.Is(err, context.Canceled):
		h.logger.Info("client closed request", slog.String("request_id", requestID))
		c.AbortWithStatus(statusClientClosedRequest)

	default:
		h.logger.Error("advice request failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get health advice. Please try again.",
		})
	}
}

func (h *AdviceHandler) saveConsultation(ctx context.Context, userID, issue, text string) {
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if _, err := h.store.Save(ctx, history.Consultation{UserID: userID, Issue: issue, Advice: text}); err != nil {
		h.logger.Warn("failed to save consultation",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleProviders handles GET /api/providers.
func (h *AdviceHandler) HandleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.ProviderStatus())
}

// HandleHealth handles GET /api/health.
func (h *AdviceHandler) HandleHealth(c *gin.Context) {
	status := h.status.ProviderStatus()

	state := "ok"
	if status.AvailableCount == 0 {
		state = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              state,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"providers_available": status.AvailableCount,
	})
}
