package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/hpn/preaid-gateway/internal/domain"
)

// captureOutput redirects color.Output with colours disabled.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor := color.Output, color.NoColor
	color.Output = &buf
	color.NoColor = true
	t.Cleanup(func() {
		color.Output = prevOut
		color.NoColor = prevNoColor
	})
	return &buf
}

func TestPrintProviderTable(t *testing.T) {
	buf := captureOutput(t)

	PrintProviderTable(domain.ProviderStatus{
		Total:          3,
		AvailableCount: 1,
		Providers: []domain.ProviderState{
			{Name: domain.ProviderGemini, Configured: false},
			{Name: domain.ProviderOpenAI, Configured: true},
			{Name: domain.ProviderAnthropic, Configured: false},
		},
	})

	out := buf.String()
	for _, want := range []string{"Providers available: 1/3", "1. gemini", "2. openai", "READY", "not configured"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[WARNING]") {
		t.Errorf("unexpected warning with one provider available:\n%s", out)
	}
}

func TestPrintProviderTable_NoneAvailable(t *testing.T) {
	buf := captureOutput(t)

	PrintProviderTable(domain.ProviderStatus{Total: 1, Providers: []domain.ProviderState{{Name: domain.ProviderGemini}}})

	if !strings.Contains(buf.String(), "No AI providers configured") {
		t.Errorf("output missing warning:\n%s", buf.String())
	}
}

func TestPrintProvidersFailed(t *testing.T) {
	buf := captureOutput(t)

	PrintProvidersFailed([]domain.DispatchFailure{
		{ProviderName: domain.ProviderGemini, ErrorMessage: "HTTP 503: Service Unavailable"},
		{ProviderName: domain.ProviderOpenAI, ErrorMessage: "HTTP 429: " + strings.Repeat("x", 100)},
	})

	out := buf.String()
	if !strings.Contains(out, "gemini: HTTP 503: Service Unavailable | openai: HTTP 429") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 60)) {
		t.Errorf("long error message not truncated:\n%s", out)
	}
}

func TestPrintCacheHit(t *testing.T) {
	buf := captureOutput(t)

	PrintCacheHit("0123456789abcdef", 0)

	if got := buf.String(); !strings.Contains(got, "CACHE HIT | key:0123...cdef | 0ms") {
		t.Errorf("PrintCacheHit() = %q", got)
	}
}

func TestPrintRequest(t *testing.T) {
	buf := captureOutput(t)

	PrintRequest("POST", "/api/chat", 200, 1500*time.Millisecond, "openai")

	out := buf.String()
	for _, want := range []string{" POST ", "/api/chat", " 200 ", "1500ms", "openai"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestPrintStartupInfo(t *testing.T) {
	buf := captureOutput(t)

	PrintStartupInfo("0.0.0.0", 3004, []Endpoint{
		{Method: "POST", Path: "/api/chat", Description: "First-aid advice"},
		{Method: "GET", Path: "/api/health", Description: "Health check"},
	})

	out := buf.String()
	for _, want := range []string{"http://0.0.0.0:3004", "/api/chat    First-aid advice", "/api/health  Health check"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintBanner(t *testing.T) {
	buf := captureOutput(t)

	PrintBanner("v1.2.0")

	out := buf.String()
	if !strings.Contains(out, "FIRST-AID ADVICE GATEWAY") || !strings.Contains(out, "v1.2.0") {
		t.Errorf("banner missing title or version:\n%s", out)
	}
}

func TestShortKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "***"},
		{"abcdefghijkl", "abcd...ijkl"},
	}
	for _, tt := range tests {
		if got := shortKey(tt.in); got != tt.want {
			t.Errorf("shortKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"fits", "HTTP 503", 10, "HTTP 503"},
		{"newlines flattened", "line one\nline two", 20, "line one line two"},
		{"ascii cut", "HTTP 500: internal failure", 10, "HTTP 50..."},
		{"multi-byte cut", "HTTP 429: quá nhiều yêu cầu", 15, "HTTP 429: qu..."},
		{"multi-byte fits by runes", "lỗi máy chủ", 11, "lỗi máy chủ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.maxLen)
			}
		})
	}
}

func TestPrintInfo(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Fallback order: gemini → openai")

	if got := buf.String(); got != "[PREAID] Fallback order: gemini → openai\n" {
		t.Errorf("PrintInfo output = %q", got)
	}
}
