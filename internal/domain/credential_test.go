package domain

import (
	"reflect"
	"testing"
)

func TestIsPlausibleCredential(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		expected   bool
	}{
		{"empty", "", false},
		{"placeholder", "your_api_key_here", false},
		{"placeholder upper case", "YOUR_API_KEY_HERE", false},
		{"template placeholder", "your-openai-api-key-here", false},
		{"ten characters", "abcdefghij", false},
		{"eleven characters", "abcdefghijk", true},
		{"twenty characters", "a1b2c3d4e5f6g7h8i9j0", true},
		{"real looking google key", "AIzaSyABCDEFGHIJKLMNOPQRSTUVWXYZ123456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlausibleCredential(tt.credential); got != tt.expected {
				t.Errorf("IsPlausibleCredential(%q) = %v, want %v", tt.credential, got, tt.expected)
			}
		})
	}
}

func TestProviderDescriptor_Configured(t *testing.T) {
	d := ProviderDescriptor{Name: ProviderGemini, Credential: "short"}
	if d.Configured() {
		t.Error("Configured() = true for a 5-character credential")
	}

	d.Credential = "long-enough-credential"
	if !d.Configured() {
		t.Error("Configured() = false for a plausible credential")
	}
}

func TestIsKnownProvider(t *testing.T) {
	for _, name := range KnownProviders() {
		if !IsKnownProvider(name) {
			t.Errorf("IsKnownProvider(%s) = false", name)
		}
	}
	if IsKnownProvider("mistral") {
		t.Error("IsKnownProvider(mistral) = true, want false")
	}
}

func TestProviderStatus_Helpers(t *testing.T) {
	status := ProviderStatus{
		Total:          3,
		AvailableCount: 2,
		Providers: []ProviderState{
			{Name: ProviderGemini, Configured: true},
			{Name: ProviderOpenAI, Configured: false},
			{Name: ProviderAnthropic, Configured: true},
		},
	}

	if got := status.PerProviderConfigured(); !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Errorf("PerProviderConfigured() = %v", got)
	}
	if got := status.ConfiguredNames(); !reflect.DeepEqual(got, []string{"gemini", "anthropic"}) {
		t.Errorf("ConfiguredNames() = %v", got)
	}
}
