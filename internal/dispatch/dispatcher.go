// Package dispatch sends a prompt to an ordered list of AI providers and
// returns the first non-empty answer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hpn/preaid-gateway/internal/adapter"
	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultAttemptTimeout bounds a single provider attempt.
	DefaultAttemptTimeout = 15 * time.Second

	// DefaultMaxResponseBytes caps how much of a provider body is read.
	DefaultMaxResponseBytes = 1 << 20
)

// Attempt outcomes reported to the Recorder.
const (
	OutcomeSuccess        = "success"
	OutcomeHTTPError      = "http_error"
	OutcomeParseError     = "parse_error"
	OutcomeTransportError = "transport_error"
	OutcomeTimeout        = "timeout"
)

// Dispatch outcomes reported to the Recorder.
const (
	DispatchSuccess    = "success"
	DispatchAllFailed  = "all_failed"
	DispatchNoProvider = "no_provider"
	DispatchCancelled  = "cancelled"
)

// Recorder receives per-attempt and per-dispatch observations.
type Recorder interface {
	ObserveAttempt(provider domain.ProviderName, outcome string, elapsed time.Duration)
	ObserveDispatch(outcome string, attempts int)
}

// Dispatcher tries providers in order until one yields content.
// It holds no mutable state after construction and is safe for concurrent use.
type Dispatcher struct {
	providers        []adapter.AIProvider
	available        []adapter.AIProvider
	client           *http.Client
	attemptTimeout   time.Duration
	maxResponseBytes int64
	logger           *slog.Logger
	recorder         Recorder
}

// Option is a functional option for configuring Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithAttemptTimeout sets the per-attempt deadline. Zero disables it.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout >= 0 {
			d.attemptTimeout = timeout
		}
	}
}

// WithMaxResponseBytes caps the bytes read from a provider response.
func WithMaxResponseBytes(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxResponseBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// NewDispatcher creates a Dispatcher over providers, in fallback order.
// Providers whose credential is not plausible are skipped for the lifetime
// of the dispatcher. An empty result is not an error.
func NewDispatcher(providers []adapter.AIProvider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers:        providers,
		client:           &http.Client{},
		attemptTimeout:   DefaultAttemptTimeout,
		maxResponseBytes: DefaultMaxResponseBytes,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	for _, p := range providers {
		if p.Descriptor().Configured() {
			d.available = append(d.available, p)
		}
	}

	if len(d.available) == 0 {
		d.logger.Warn("no AI provider has a usable credential")
	} else {
		d.logger.Info("dispatcher ready",
			slog.Int("available", len(d.available)),
			slog.Int("total", len(providers)),
			slog.String("order", strings.Join(d.ProviderStatus().ConfiguredNames(), ",")),
		)
	}

	return d
}

// GenerateResponse sends prompt to each available provider in order and
// returns the first non-empty content. When every provider fails it returns
// *AllProvidersFailedError listing each failure in attempt order. A
// cancelled ctx stops the chain and its error is returned as is.
func (d *Dispatcher) GenerateResponse(ctx context.Context, prompt string, opts domain.GenerationOptions) (domain.DispatchResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.DispatchResult{}, ErrEmptyPrompt
	}
	if len(d.available) == 0 {
		d.observeDispatch(DispatchNoProvider, 0)
		return domain.DispatchResult{}, ErrNoProviderConfigured
	}

	params := opts.Resolve()
	failures := make([]domain.DispatchFailure, 0, len(d.available))

	for i, p := range d.available {
		if err := ctx.Err(); err != nil {
			d.observeDispatch(DispatchCancelled, i)
			return domain.DispatchResult{}, err
		}

		attempt := i + 1
		start := time.Now()
		content, outcome, err := d.try(ctx, p, prompt, params)
		d.observeAttempt(p.Name(), outcome, time.Since(start))

		if err == nil {
			d.logger.Info("provider answered",
				slog.String("provider", string(p.Name())),
				slog.Int("attempt", attempt),
				slog.Duration("latency", time.Since(start)),
			)
			d.observeDispatch(DispatchSuccess, attempt)
			return domain.DispatchResult{ProviderName: p.Name(), Content: content}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			d.observeDispatch(DispatchCancelled, attempt)
			return domain.DispatchResult{}, ctxErr
		}

		d.logger.Warn("provider failed, trying next",
			slog.String("provider", string(p.Name())),
			slog.Int("attempt", attempt),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		failures = append(failures, domain.DispatchFailure{
			ProviderName: p.Name(),
			ErrorMessage: err.Error(),
		})
	}

	d.logger.Error("all providers failed", slog.Int("attempts", len(failures)))
	d.observeDispatch(DispatchAllFailed, len(failures))
	return domain.DispatchResult{}, &AllProvidersFailedError{Failures: failures}
}

// try performs one provider attempt under its own deadline.
func (d *Dispatcher) try(ctx context.Context, p adapter.AIProvider, prompt string, params domain.GenerationParams) (string, string, error) {
	attemptCtx := ctx
	if d.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()
	}

	req, err := p.BuildRequest(attemptCtx, prompt, params)
	if err != nil {
		return "", OutcomeTransportError, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", d.transportOutcome(ctx, attemptCtx), d.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxResponseBytes))
	if err != nil {
		return "", d.transportOutcome(ctx, attemptCtx), fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", OutcomeHTTPError, &HTTPError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	content, err := p.ParseResponse(body)
	if err != nil {
		return "", OutcomeParseError, err
	}
	return content, OutcomeSuccess, nil
}

func (d *Dispatcher) transportOutcome(parent, attempt context.Context) string {
	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	return OutcomeTransportError
}

// transportError drops the request URL, which may carry a credential.
func (d *Dispatcher) transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("attempt timed out after %s: %w", d.attemptTimeout, urlErr.Err)
		}
		return fmt.Errorf("transport error: %w", urlErr.Err)
	}
	return fmt.Errorf("transport error: %w", err)
}

// ProviderStatus reports which providers are usable. It performs no I/O.
func (d *Dispatcher) ProviderStatus() domain.ProviderStatus {
	states := make([]domain.ProviderState, len(d.providers))
	for i, p := range d.providers {
		states[i] = domain.ProviderState{
			Name:       p.Name(),
			Configured: p.Descriptor().Configured(),
		}
	}
	return domain.ProviderStatus{
		Total:          len(d.providers),
		AvailableCount: len(d.available),
		Providers:      states,
	}
}

func (d *Dispatcher) observeAttempt(provider domain.ProviderName, outcome string, elapsed time.Duration) {
	if d.recorder != nil {
		d.recorder.ObserveAttempt(provider, outcome, elapsed)
	}
}

func (d *Dispatcher) observeDispatch(outcome string, attempts int) {
	if d.recorder != nil {
		d.recorder.ObserveDispatch(outcome, attempts)
	}
}
