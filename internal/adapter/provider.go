// Package adapter provides implementations for external AI provider integrations.
// It uses the Adapter pattern to abstract provider-specific APIs behind a common interface.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// AIProvider defines the interface for AI provider adapters.
// Implementations are immutable values: BuildRequest and ParseResponse are
// pure and never perform I/O. The dispatcher owns the HTTP call.
type AIProvider interface {
	// Name returns the provider's identifier string.
	Name() domain.ProviderName

	// Descriptor returns the static configuration the adapter was built from.
	Descriptor() domain.ProviderDescriptor

	// BuildRequest translates a prompt and resolved options into the
	// provider's wire request.
	BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error)

	// ParseResponse extracts generated text from a 2xx response body.
	// Failures are returned as *ParseError.
	ParseResponse(body []byte) (string, error)
}

var (
	// ErrNoContent is returned when a response parses but carries no text.
	ErrNoContent = errors.New("no content generated")

	// ErrSafetyBlocked is returned when the provider refused the prompt.
	ErrSafetyBlocked = errors.New("request blocked by safety filters")

	// ErrProviderReported is returned when a 2xx body carries an error object.
	ErrProviderReported = errors.New("provider reported an error")
)

// ParseError is returned by ParseResponse when the body has an unexpected
// shape, is empty or was blocked.
type ParseError struct {
	Provider domain.ProviderName
	Detail   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", e.Provider, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(provider domain.ProviderName, err error, detail string) *ParseError {
	return &ParseError{Provider: provider, Err: err, Detail: detail}
}

// newJSONRequest marshals payload and builds a POST request with JSON headers.
func newJSONRequest(ctx context.Context, url string, payload any, headers map[string]string) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func bearer(credential string) string {
	return "Bearer " + credential
}

// persona prefixes prompts for completion-style providers that take no system role.
const persona = "You are PreAid, an AI health assistant. Provide medical advice for: "
