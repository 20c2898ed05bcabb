package domain

// Generation defaults applied when a caller omits a field.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultTopP        = 0.8
	DefaultTopK        = 40
)

// GenerationOptions are caller-supplied sampling options. Nil fields fall back
// to defaults; values are passed through without range checks.
type GenerationOptions struct {
	Temperature *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   *int     `json:"maxTokens,omitempty" mapstructure:"max_tokens"`
	TopP        *float64 `json:"topP,omitempty" mapstructure:"top_p"`
	TopK        *int     `json:"topK,omitempty" mapstructure:"top_k"`
}

// GenerationParams are GenerationOptions with every default resolved.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// Resolve applies defaults to every missing field.
func (o GenerationOptions) Resolve() GenerationParams {
	p := GenerationParams{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		TopK:        DefaultTopK,
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		p.MaxTokens = *o.MaxTokens
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if o.TopK != nil {
		p.TopK = *o.TopK
	}
	return p
}

// Float returns a pointer to f, for building GenerationOptions literals.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// DispatchResult is the text produced by the first provider that succeeded.
type DispatchResult struct {
	ProviderName ProviderName `json:"provider"`
	Content      string       `json:"content"`
}

// DispatchFailure records one failed provider attempt.
type DispatchFailure struct {
	ProviderName ProviderName `json:"provider"`
	ErrorMessage string       `json:"error"`
}
