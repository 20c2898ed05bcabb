// Package advice turns a user question into first-aid advice using the
// provider dispatcher, retrying once with a richer prompt when the first
// answer is too short.
package advice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// DefaultMinLength is the advice length below which the detailed prompt is tried.
const DefaultMinLength = 50

// ErrEmptyMessage is returned when the question is blank.
var ErrEmptyMessage = errors.New("message is required")

// HistoryItem is one previous consultation supplied as context.
type HistoryItem struct {
	Issue   string `json:"issue"`
	TimeAgo string `json:"timeAgo"`
}

// Request is a single advice request.
type Request struct {
	Message               string        `json:"message"`
	History               []HistoryItem `json:"history,omitempty"`
	IsPartialHistory      bool          `json:"isPartialHistory,omitempty"`
	IsFullAnalysisRequest bool          `json:"isFullAnalysisRequest,omitempty"`
}

// Response is the advice returned to the caller.
type Response struct {
	Advice   string              `json:"advice"`
	Provider domain.ProviderName `json:"provider"`
	Retried  bool                `json:"-"`
}

// Generator is the dispatcher contract used by Service.
type Generator interface {
	GenerateResponse(ctx context.Context, prompt string, opts domain.GenerationOptions) (domain.DispatchResult, error)
}

// Observer receives advice-level observations.
type Observer interface {
	ObserveRetry()
	ObserveAdvice(text string)
}

// Service builds prompts and applies the short-answer retry.
type Service struct {
	generator Generator
	minLength int
	primary   domain.GenerationOptions
	retry     domain.GenerationOptions
	logger    *slog.Logger
	observer  Observer
}

// Option is a functional option for configuring Service.
type Option func(*Service)

// WithMinLength sets the length under which a retry is attempted.
func WithMinLength(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minLength = n
		}
	}
}

// WithPrimaryOptions sets the options for the first dispatch.
func WithPrimaryOptions(opts domain.GenerationOptions) Option {
	return func(s *Service) {
		s.primary = opts
	}
}

// WithRetryOptions sets the options for the detailed retry.
func WithRetryOptions(opts domain.GenerationOptions) Option {
	return func(s *Service) {
		s.retry = opts
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// DefaultPrimaryOptions are the options of the first dispatch.
func DefaultPrimaryOptions() domain.GenerationOptions {
	return domain.GenerationOptions{
		Temperature: domain.Float(0.7),
		MaxTokens:   domain.Int(2048),
		TopP:        domain.Float(0.8),
		TopK:        domain.Int(40),
	}
}

// DefaultRetryOptions are the options of the detailed retry.
func DefaultRetryOptions() domain.GenerationOptions {
	return domain.GenerationOptions{
		Temperature: domain.Float(0.6),
		MaxTokens:   domain.Int(1500),
	}
}

// NewService creates a Service on top of generator.
func NewService(generator Generator, opts ...Option) *Service {
	s := &Service{
		generator: generator,
		minLength: DefaultMinLength,
		primary:   DefaultPrimaryOptions(),
		retry:     DefaultRetryOptions(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Advise answers req. Dispatcher errors are returned unchanged.
func (s *Service) Advise(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrEmptyMessage
	}

	result, err := s.generator.GenerateResponse(ctx, BuildPrompt(req), s.primary)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Advice: result.Content, Provider: result.ProviderName}

	if utf8.RuneCountInString(resp.Advice) < s.minLength {
		s.logger.Info("advice too short, retrying with detailed prompt",
			slog.String("provider", string(result.ProviderName)),
			slog.Int("length", utf8.RuneCountInString(resp.Advice)),
		)
		if s.observer != nil {
			s.observer.ObserveRetry()
		}

		retry, err := s.generator.GenerateResponse(ctx, BuildDetailedPrompt(req.Message), s.retry)
		if err != nil {
			return Response{}, err
		}
		resp.Advice = retry.Content
		resp.Provider = retry.ProviderName
		resp.Retried = true
	}

	if req.IsPartialHistory && !req.IsFullAnalysisRequest {
		resp.Advice = withQuickAnalysisNote(resp.Advice)
	}

	if s.observer != nil {
		s.observer.ObserveAdvice(resp.Advice)
	}

	return resp, nil
}
