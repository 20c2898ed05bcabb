package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultOpenAIURL is the chat completions endpoint.
	DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

	// DefaultOpenAIModel is the model used when none is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIAdapter implements AIProvider for the OpenAI chat completions API.
type OpenAIAdapter struct {
	desc domain.ProviderDescriptor
}

// NewOpenAIAdapter creates a new OpenAIAdapter from a descriptor.
func NewOpenAIAdapter(desc domain.ProviderDescriptor) *OpenAIAdapter {
	desc.Name = domain.ProviderOpenAI
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultOpenAIURL
	}
	if desc.Model == "" {
		desc.Model = DefaultOpenAIModel
	}
	return &OpenAIAdapter{desc: desc}
}

// Name returns the provider identifier.
func (o *OpenAIAdapter) Name() domain.ProviderName {
	return domain.ProviderOpenAI
}

// Descriptor returns the adapter's configuration.
func (o *OpenAIAdapter) Descriptor() domain.ProviderDescriptor {
	return o.desc
}

// BuildRequest maps a prompt to a single-message chat completion request.
func (o *OpenAIAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	payload := OpenAIRequest{
		Model:       o.desc.Model,
		Messages:    []OpenAIMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	}
	return newJSONRequest(ctx, o.desc.Endpoint, payload, map[string]string{
		"Authorization": bearer(o.desc.Credential),
	})
}

// ParseResponse returns choices[0].message.content.
func (o *OpenAIAdapter) ParseResponse(body []byte) (string, error) {
	var resp OpenAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(o.Name(), fmt.Errorf("failed to unmarshal openai response: %w", err), "")
	}

	if resp.Error != nil {
		return "", parseError(o.Name(), ErrProviderReported, resp.Error.Message)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", parseError(o.Name(), ErrNoContent, "")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIRequest represents an OpenAI chat completion request.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	TopP        float64         `json:"top_p"`
}

// OpenAIMessage represents a single message in the conversation.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponse represents an OpenAI chat completion response.
type OpenAIResponse struct {
	ID      string             `json:"id"`
	Choices []OpenAIChoice     `json:"choices"`
	Error   *OpenAIErrorDetail `json:"error,omitempty"`
}

// OpenAIChoice represents a single completion choice.
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIErrorDetail contains the error details.
type OpenAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
