package domain

import "strings"

// MinCredentialLength is the length a credential must exceed to be considered plausible.
const MinCredentialLength = 10

// placeholderCredentials are sample values shipped in env templates.
var placeholderCredentials = map[string]struct{}{
	"your_api_key_here":             {},
	"your-api-key-here":             {},
	"your-gemini-api-key-here":      {},
	"your-openai-api-key-here":      {},
	"your-cohere-api-key-here":      {},
	"your-huggingface-api-key-here": {},
	"gemini_api_key_not_configured": {},
}

// IsPlausibleCredential applies the availability heuristic: non-empty, not a
// known placeholder and longer than MinCredentialLength. It does not prove the
// key works; a malformed key only fails at call time.
func IsPlausibleCredential(credential string) bool {
	if credential == "" {
		return false
	}
	if _, placeholder := placeholderCredentials[strings.ToLower(credential)]; placeholder {
		return false
	}
	return len(credential) > MinCredentialLength
}
