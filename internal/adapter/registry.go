package adapter

import (
	"fmt"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// New builds the adapter matching desc.Name.
func New(desc domain.ProviderDescriptor) (AIProvider, error) {
	switch desc.Name {
	case domain.ProviderGemini:
		return NewGeminiAdapter(desc), nil
	case domain.ProviderOpenAI:
		return NewOpenAIAdapter(desc), nil
	case domain.ProviderCohere:
		return NewCohereAdapter(desc), nil
	case domain.ProviderHuggingFace:
		return NewHuggingFaceAdapter(desc), nil
	case domain.ProviderTogether:
		return NewTogetherAdapter(desc), nil
	case domain.ProviderAnthropic:
		return NewAnthropicAdapter(desc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", desc.Name)
	}
}

// FromDescriptors builds adapters for descs, preserving their order.
func FromDescriptors(descs []domain.ProviderDescriptor) ([]AIProvider, error) {
	providers := make([]AIProvider, 0, len(descs))
	for i, d := range descs {
		p, err := New(d)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// DefaultDescriptors returns the built-in catalog in fallback order, without credentials.
func DefaultDescriptors() []domain.ProviderDescriptor {
	return []domain.ProviderDescriptor{
		{Name: domain.ProviderGemini, Endpoint: DefaultGeminiBaseURL, Model: DefaultGeminiModel},
		{Name: domain.ProviderOpenAI, Endpoint: DefaultOpenAIURL, Model: DefaultOpenAIModel},
		{Name: domain.ProviderCohere, Endpoint: DefaultCohereURL, Model: DefaultCohereModel},
		{Name: domain.ProviderHuggingFace, Endpoint: DefaultHuggingFaceBaseURL, Model: DefaultHuggingFaceModel},
		{Name: domain.ProviderTogether, Endpoint: DefaultTogetherURL, Model: DefaultTogetherModel},
		{Name: domain.ProviderAnthropic, Endpoint: DefaultAnthropicURL, Model: DefaultAnthropicModel},
	}
}
