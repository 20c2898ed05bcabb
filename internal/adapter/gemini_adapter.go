// Package adapter provides implementations for external AI provider integrations.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultGeminiBaseURL is the default Gemini API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1"

	// DefaultGeminiModel is the model used when none is configured.
	DefaultGeminiModel = "gemini-2.5-pro"
)

// GeminiAdapter implements AIProvider for Google Gemini API.
// The credential travels as the "key" query parameter.
type GeminiAdapter struct {
	desc domain.ProviderDescriptor
}

// NewGeminiAdapter creates a new GeminiAdapter from a descriptor.
func NewGeminiAdapter(desc domain.ProviderDescriptor) *GeminiAdapter {
	desc.Name = domain.ProviderGemini
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultGeminiBaseURL
	}
	if desc.Model == "" {
		desc.Model = DefaultGeminiModel
	}
	desc.Endpoint = strings.TrimSuffix(desc.Endpoint, "/")
	return &GeminiAdapter{desc: desc}
}

// Name returns the provider identifier.
func (g *GeminiAdapter) Name() domain.ProviderName {
	return domain.ProviderGemini
}

// Descriptor returns the adapter's configuration.
func (g *GeminiAdapter) Descriptor() domain.ProviderDescriptor {
	return g.desc
}

// BuildRequest maps a prompt to a generateContent request.
func (g *GeminiAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?%s",
		g.desc.Endpoint, g.desc.Model, url.Values{"key": {g.desc.Credential}}.Encode())

	return newJSONRequest(ctx, endpoint, g.mapToGeminiRequest(prompt, params), nil)
}

func (g *GeminiAdapter) mapToGeminiRequest(prompt string, params domain.GenerationParams) GeminiRequest {
	return GeminiRequest{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
			TopP:            params.TopP,
			TopK:            params.TopK,
		},
	}
}

// ParseResponse joins the text parts of the first candidate.
// A promptFeedback.blockReason means the prompt was refused.
func (g *GeminiAdapter) ParseResponse(body []byte) (string, error) {
	var resp GeminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(g.Name(), fmt.Errorf("failed to unmarshal gemini response: %w", err), "")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", parseError(g.Name(), ErrSafetyBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", parseError(g.Name(), ErrNoContent, "")
	}

	texts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	text := strings.Join(texts, "\n\n")
	if text == "" {
		return "", parseError(g.Name(), ErrNoContent, resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// ============================================================================
// Gemini API Types
// ============================================================================

// GeminiRequest represents a Gemini generateContent request.
type GeminiRequest struct {
	Contents         []GeminiContent        `json:"contents"`
	GenerationConfig GeminiGenerationConfig `json:"generationConfig"`
}

// GeminiContent represents a content block in Gemini format.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of a content block.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiGenerationConfig contains generation parameters.
type GeminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

// GeminiResponse represents a Gemini generateContent response.
type GeminiResponse struct {
	Candidates     []GeminiCandidate     `json:"candidates"`
	PromptFeedback *GeminiPromptFeedback `json:"promptFeedback,omitempty"`
}

// GeminiCandidate represents a single generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

// GeminiPromptFeedback reports prompt-level safety decisions.
type GeminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}
