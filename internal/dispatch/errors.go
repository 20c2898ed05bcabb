package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hpn/preaid-gateway/internal/domain"
)

var (
	// ErrNoProviderConfigured is returned when no provider passed the
	// credential check at construction. No network I/O is performed.
	ErrNoProviderConfigured = errors.New("no AI provider configured")

	// ErrAllProvidersFailed matches *AllProvidersFailedError via errors.Is.
	ErrAllProvidersFailed = errors.New("all AI providers failed")

	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// HTTPError is recorded when a provider answers with a non-2xx status.
type HTTPError struct {
	Provider   domain.ProviderName
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// AllProvidersFailedError carries one failure per attempted provider, in
// attempt order.
type AllProvidersFailedError struct {
	Failures []domain.DispatchFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = string(f.ProviderName) + ": " + f.ErrorMessage
	}
	return ErrAllProvidersFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrAllProvidersFailed.
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}
