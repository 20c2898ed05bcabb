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
	// DefaultTogetherURL is the Together inference endpoint.
	DefaultTogetherURL = "https://api.together.xyz/inference"

	// DefaultTogetherModel is the model used when none is configured.
	DefaultTogetherModel = "meta-llama/Llama-2-7b-chat-hf"
)

// TogetherAdapter implements AIProvider for the Together inference API.
type TogetherAdapter struct {
	desc domain.ProviderDescriptor
}

// NewTogetherAdapter creates a new TogetherAdapter from a descriptor.
func NewTogetherAdapter(desc domain.ProviderDescriptor) *TogetherAdapter {
	desc.Name = domain.ProviderTogether
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultTogetherURL
	}
	if desc.Model == "" {
		desc.Model = DefaultTogetherModel
	}
	return &TogetherAdapter{desc: desc}
}

// Name returns the provider identifier.
func (t *TogetherAdapter) Name() domain.ProviderName {
	return domain.ProviderTogether
}

// Descriptor returns the adapter's configuration.
func (t *TogetherAdapter) Descriptor() domain.ProviderDescriptor {
	return t.desc
}

// BuildRequest maps a prompt to a completion request prefixed with the persona.
func (t *TogetherAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	payload := TogetherRequest{
		Model:       t.desc.Model,
		Prompt:      persona + prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
	}
	return newJSONRequest(ctx, t.desc.Endpoint, payload, map[string]string{
		"Authorization": bearer(t.desc.Credential),
	})
}

// ParseResponse reads output.choices[0].text, falling back to choices[0].text.
func (t *TogetherAdapter) ParseResponse(body []byte) (string, error) {
	var resp TogetherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(t.Name(), fmt.Errorf("failed to unmarshal together response: %w", err), "")
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return "", parseError(t.Name(), ErrProviderReported, togetherErrorMessage(resp.Error))
	}

	var text string
	if resp.Output != nil && len(resp.Output.Choices) > 0 {
		text = resp.Output.Choices[0].Text
	}
	if text == "" && len(resp.Choices) > 0 {
		text = resp.Choices[0].Text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", parseError(t.Name(), ErrNoContent, "")
	}
	return text, nil
}

// togetherErrorMessage handles both {"error":"..."} and {"error":{"message":"..."}}.
func togetherErrorMessage(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// TogetherRequest represents a Together inference request.
type TogetherRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
}

// TogetherResponse covers both the legacy and the OpenAI-style response shapes.
type TogetherResponse struct {
	Output  *TogetherOutput  `json:"output,omitempty"`
	Choices []TogetherChoice `json:"choices,omitempty"`
	Error   json.RawMessage  `json:"error,omitempty"`
}

// TogetherOutput wraps choices in the legacy response shape.
type TogetherOutput struct {
	Choices []TogetherChoice `json:"choices"`
}

// TogetherChoice is one generated completion.
type TogetherChoice struct {
	Text string `json:"text"`
}
