package domain

import (
	"encoding/json"
	"testing"
)

func TestGenerationOptions_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		input    GenerationOptions
		expected GenerationParams
	}{
		{
			name:     "all defaults",
			input:    GenerationOptions{},
			expected: GenerationParams{Temperature: 0.7, MaxTokens: 2048, TopP: 0.8, TopK: 40},
		},
		{
			name:     "partial override",
			input:    GenerationOptions{Temperature: Float(0.6), MaxTokens: Int(1500)},
			expected: GenerationParams{Temperature: 0.6, MaxTokens: 1500, TopP: 0.8, TopK: 40},
		},
		{
			name:     "explicit zero is kept",
			input:    GenerationOptions{Temperature: Float(0), TopK: Int(0)},
			expected: GenerationParams{Temperature: 0, MaxTokens: 2048, TopP: 0.8, TopK: 0},
		},
		{
			name:     "out of range passes through",
			input:    GenerationOptions{Temperature: Float(5), TopP: Float(-1)},
			expected: GenerationParams{Temperature: 5, MaxTokens: 2048, TopP: -1, TopK: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.Resolve(); got != tt.expected {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestGenerationOptions_IgnoresUnknownFields(t *testing.T) {
	var opts GenerationOptions
	body := []byte(`{"temperature":0.2,"maxTokens":100,"frequencyPenalty":1.5}`)
	if err := json.Unmarshal(body, &opts); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	p := opts.Resolve()
	if p.Temperature != 0.2 || p.MaxTokens != 100 || p.TopP != DefaultTopP || p.TopK != DefaultTopK {
		t.Errorf("Resolve() = %+v", p)
	}
}
