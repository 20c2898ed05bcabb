package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	// DefaultHuggingFaceBaseURL is the inference API base; the model is appended.
	DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co/models"

	// DefaultHuggingFaceModel is the model used when none is configured.
	DefaultHuggingFaceModel = "microsoft/DialoGPT-large"
)

// HuggingFaceAdapter implements AIProvider for the Hugging Face inference API.
type HuggingFaceAdapter struct {
	desc domain.ProviderDescriptor
}

// NewHuggingFaceAdapter creates a new HuggingFaceAdapter from a descriptor.
func NewHuggingFaceAdapter(desc domain.ProviderDescriptor) *HuggingFaceAdapter {
	desc.Name = domain.ProviderHuggingFace
	if desc.Endpoint == "" {
		desc.Endpoint = DefaultHuggingFaceBaseURL
	}
	if desc.Model == "" {
		desc.Model = DefaultHuggingFaceModel
	}
	desc.Endpoint = strings.TrimSuffix(desc.Endpoint, "/")
	return &HuggingFaceAdapter{desc: desc}
}

// Name returns the provider identifier.
func (h *HuggingFaceAdapter) Name() domain.ProviderName {
	return domain.ProviderHuggingFace
}

// Descriptor returns the adapter's configuration.
func (h *HuggingFaceAdapter) Descriptor() domain.ProviderDescriptor {
	return h.desc
}

// BuildRequest frames the prompt as a User/Assistant exchange.
func (h *HuggingFaceAdapter) BuildRequest(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	payload := HuggingFaceRequest{
		Inputs: fmt.Sprintf("User: You are PreAid, a medical AI assistant. %s\nAssistant:", prompt),
		Parameters: HuggingFaceParameters{
			MaxLength:      params.MaxTokens,
			Temperature:    params.Temperature,
			TopP:           params.TopP,
			DoSample:       true,
			ReturnFullText: false,
		},
		Options: HuggingFaceOptions{
			WaitForModel: true,
			UseCache:     false,
		},
	}
	return newJSONRequest(ctx, h.desc.Endpoint+"/"+h.desc.Model, payload, map[string]string{
		"Authorization": bearer(h.desc.Credential),
	})
}

// ParseResponse accepts both the list form and the single-object form.
func (h *HuggingFaceAdapter) ParseResponse(body []byte) (string, error) {
	var text string

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []HuggingFaceGeneration
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", parseError(h.Name(), fmt.Errorf("failed to unmarshal huggingface response: %w", err), "")
		}
		if len(list) > 0 {
			text = list[0].GeneratedText
		}
	} else {
		var single HuggingFaceGeneration
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return "", parseError(h.Name(), fmt.Errorf("failed to unmarshal huggingface response: %w", err), "")
		}
		if single.Error != "" {
			return "", parseError(h.Name(), ErrProviderReported, single.Error)
		}
		text = single.GeneratedText
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", parseError(h.Name(), ErrNoContent, "")
	}
	return text, nil
}

// HuggingFaceRequest represents an inference API request.
type HuggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters HuggingFaceParameters `json:"parameters"`
	Options    HuggingFaceOptions    `json:"options"`
}

// HuggingFaceParameters are the text-generation parameters.
type HuggingFaceParameters struct {
	MaxLength      int     `json:"max_length"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

// HuggingFaceOptions control model loading and caching.
type HuggingFaceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

// HuggingFaceGeneration is one generated text, or an error object.
type HuggingFaceGeneration struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error,omitempty"`
}
