// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

// ProviderName identifies a text-generation provider (e.g., Gemini, OpenAI, Anthropic).
type ProviderName string

const (
	ProviderGemini      ProviderName = "gemini"
	ProviderOpenAI      ProviderName = "openai"
	ProviderCohere      ProviderName = "cohere"
	ProviderHuggingFace ProviderName = "huggingface"
	ProviderTogether    ProviderName = "together"
	ProviderAnthropic   ProviderName = "anthropic"
)

// KnownProviders returns every supported provider in the default fallback order.
func KnownProviders() []ProviderName {
	return []ProviderName{
		ProviderGemini,
		ProviderOpenAI,
		ProviderCohere,
		ProviderHuggingFace,
		ProviderTogether,
		ProviderAnthropic,
	}
}

// IsKnownProvider reports whether name has a wire adapter.
func IsKnownProvider(name ProviderName) bool {
	for _, p := range KnownProviders() {
		if p == name {
			return true
		}
	}
	return false
}

// ProviderDescriptor is the static configuration of one provider.
// It is built once at startup and never mutated afterwards.
type ProviderDescriptor struct {
	// Name is the unique provider identifier.
	Name ProviderName `json:"name" mapstructure:"name"`

	// Credential is the opaque API secret. May be empty.
	Credential string `json:"-" mapstructure:"api_key"`

	// Endpoint is the base URL for the provider's API.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" mapstructure:"model"`
}

// Configured reports whether the descriptor carries a plausible credential.
func (d ProviderDescriptor) Configured() bool {
	return IsPlausibleCredential(d.Credential)
}

// ProviderState is the configured/unconfigured flag of a single provider.
type ProviderState struct {
	Name       ProviderName `json:"name"`
	Configured bool         `json:"configured"`
}

// ProviderStatus is a snapshot of construction-time provider availability.
type ProviderStatus struct {
	Total          int             `json:"total"`
	AvailableCount int             `json:"available"`
	Providers      []ProviderState `json:"providers"`
}

// PerProviderConfigured returns the configured flags in provider order.
func (s ProviderStatus) PerProviderConfigured() []bool {
	flags := make([]bool, len(s.Providers))
	for i, p := range s.Providers {
		flags[i] = p.Configured
	}
	return flags
}

// ConfiguredNames returns the names of providers that passed the credential check.
func (s ProviderStatus) ConfiguredNames() []string {
	names := make([]string, 0, s.AvailableCount)
	for _, p := range s.Providers {
		if p.Configured {
			names = append(names, string(p.Name))
		}
	}
	return names
}
