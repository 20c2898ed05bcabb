package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultCohereURL is the Cohere generate endpoint.
	DefaultCohereURL = "https://api.cohere.ai/v1/generate"

	// DefaultCohereModel is the model used when none is configured.
	DefaultCohereModel = "command-light"
)

// CohereAdapter implements AIProvider for the Cohere generate API.
type CohereAdapter struct {
	desc domain.ProviderDescriptor
}

// NewCohereAdapter creates a new CohereAdapter from a descriptor.
func NewCohereAdapter(desc domain.ProviderDescriptor) *CohereAdapter {
	desc.Name = domain.ProviderCohere
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultCohereURL
	}
	if desc.Model == "" {
		desc.Model = DefaultCohereModel
	}
	return &CohereAdapter{desc: desc}
}

// Name returns the provider identifier.
func (c *CohereAdapter) Name() domain.ProviderName {
	return domain.ProviderCohere
}

// Descriptor returns the adapter's configuration.
func (c *CohereAdapter) Descriptor() domain.ProviderDescriptor {
	return c.desc
}

// BuildRequest maps a prompt to a completion request prefixed with the persona.
func (c *CohereAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	payload := CohereRequest{
		Model:       c.desc.Model,
		Prompt:      persona + prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		K:           params.TopK,
		P:           params.TopP,
	}
	return newJSONRequest(ctx, c.desc.Endpoint, payload, map[string]string{
		"Authorization": bearer(c.desc.Credential),
	})
}

// ParseResponse returns the trimmed text of the first generation.
func (c *CohereAdapter) ParseResponse(body []byte) (string, error) {
	var resp CohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(c.Name(), fmt.Errorf("failed to unmarshal cohere response: %w", err), "")
	}

	if strings.Contains(resp.Message, "error") {
		return "", parseError(c.Name(), ErrProviderReported, resp.Message)
	}
	if len(resp.Generations) == 0 {
		return "", parseError(c.Name(), ErrNoContent, "")
	}

	text := strings.TrimSpace(resp.Generations[0].Text)
	if text == "" {
		return "", parseError(c.Name(), ErrNoContent, "")
	}
	return text, nil
}

// CohereRequest represents a Cohere generate request.
type CohereRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	K           int     `json:"k"`
	P           float64 `json:"p"`
}

// CohereResponse represents a Cohere generate response.
type CohereResponse struct {
	Generations []CohereGeneration `json:"generations"`
	Message     string             `json:"message,omitempty"`
}

// CohereGeneration is one generated completion.
type CohereGeneration struct {
	Text string `json:"text"`
}
