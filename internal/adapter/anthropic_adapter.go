package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultAnthropicURL is the Anthropic messages endpoint.
	DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"

	// DefaultAnthropicModel is the model used when none is configured.
	DefaultAnthropicModel = "claude-3-haiku-20240307"

	// AnthropicVersion is sent in the anthropic-version header.
	AnthropicVersion = "2023-06-01"
)

// AnthropicAdapter implements AIProvider for the Anthropic messages API.
type AnthropicAdapter struct {
	desc domain.ProviderDescriptor
}

// NewAnthropicAdapter creates a new AnthropicAdapter from a descriptor.
func NewAnthropicAdapter(desc domain.ProviderDescriptor) *AnthropicAdapter {
	desc.Name = domain.ProviderAnthropic
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultAnthropicURL
	}
	if desc.Model == "" {
		desc.Model = DefaultAnthropicModel
	}
	return &AnthropicAdapter{desc: desc}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() domain.ProviderName {
	return domain.ProviderAnthropic
}

// Descriptor returns the adapter's configuration.
func (a *AnthropicAdapter) Descriptor() domain.ProviderDescriptor {
	return a.desc
}

// BuildRequest maps a prompt to a single-message messages request.
// The credential is sent both as a bearer token and as x-api-key.
func (a *AnthropicAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	payload := AnthropicRequest{
		Model:       a.desc.Model,
		Messages:    []AnthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	return newJSONRequest(ctx, a.desc.Endpoint, payload, map[string]string{
		"Authorization":     bearer(a.desc.Credential),
		"x-api-key":         a.desc.Credential,
		"anthropic-version": AnthropicVersion,
	})
}

// ParseResponse returns content[0].text.
func (a *AnthropicAdapter) ParseResponse(body []byte) (string, error) {
	var resp AnthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(a.Name(), fmt.Errorf("failed to unmarshal anthropic response: %w", err), "")
	}

	if resp.Error != nil {
		return "", parseError(a.Name(), ErrProviderReported, resp.Error.Message)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", parseError(a.Name(), ErrNoContent, resp.StopReason)
	}
	return resp.Content[0].Text, nil
}

// AnthropicRequest represents a messages API request.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []AnthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

// AnthropicMessage is one conversation turn.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse represents a messages API response.
type AnthropicResponse struct {
	Content    []AnthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason,omitempty"`
	Error      *AnthropicError         `json:"error,omitempty"`
}

// AnthropicContentBlock is one block of generated content.
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicError contains error details.
type AnthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
