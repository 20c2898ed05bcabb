package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/advice"
	"github.com/hpn/preaid-gateway/internal/config"
	"github.com/hpn/preaid-gateway/internal/domain"
	"github.com/hpn/preaid-gateway/internal/history"
	"github.com/hpn/preaid-gateway/internal/security"
)

const (
	testGeminiKey = "AIzaTestKey-0123456789abcdef"
	testOpenAIKey = "sk-test-0123456789abcdef"
	testJWTSecret = "e2e-jwt-secret"

	longAdvice = "Sit the person down, lean them slightly forward and pinch the soft part of the nose for ten minutes."
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================================================
// MOCK PROVIDERS
// ============================================================================

type mockReply struct {
	status int
	body   string
}

// mockProvider replays replies in order, repeating the last one.
type mockProvider struct {
	mu      sync.Mutex
	replies []mockReply
	paths   []string
	bodies  []map[string]any
	server  *httptest.Server
}

func newMockProvider(t *testing.T, replies ...mockReply) *mockProvider {
	t.Helper()
	m := &mockProvider{replies: replies}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)

		m.mu.Lock()
		idx := len(m.paths)
		if idx >= len(m.replies) {
			idx = len(m.replies) - 1
		}
		m.paths = append(m.paths, r.URL.Path)
		m.bodies = append(m.bodies, payload)
		reply := m.replies[idx]
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

func (m *mockProvider) body(i int) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies[i]
}

func geminiReply(text string) mockReply {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	return mockReply{status: http.StatusOK, body: string(body)}
}

func openAIReply(text string) mockReply {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": text}}},
	})
	return mockReply{status: http.StatusOK, body: string(body)}
}

// ============================================================================
// HARNESS
// ============================================================================

func testConfig(providers ...config.ProviderConfig) *config.Configuration {
	return &config.Configuration{
		Server:    config.ServerConfig{RequestTimeoutSeconds: 10},
		Providers: providers,
		Dispatch:  config.DispatchConfig{AttemptTimeoutSeconds: 5, MaxResponseBytes: 1 << 20},
		Advice: config.AdviceConfig{
			MinLength: 50,
			Primary:   advice.DefaultPrimaryOptions(),
			Retry:     advice.DefaultRetryOptions(),
		},
		History: config.HistoryConfig{Enabled: true, DBPath: ":memory:", RetentionDays: 30, ListLimit: 50},
		Auth:    config.AuthConfig{JWTSecret: testJWTSecret},
		Cache:   config.CacheConfig{Enabled: true, TTLSeconds: 60},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func geminiConfig(m *mockProvider) config.ProviderConfig {
	return config.ProviderConfig{Name: domain.ProviderGemini, Endpoint: m.server.URL, APIKey: testGeminiKey}
}

func openAIConfig(m *mockProvider) config.ProviderConfig {
	return config.ProviderConfig{Name: domain.ProviderOpenAI, Endpoint: m.server.URL + "/v1/chat/completions", APIKey: testOpenAIKey}
}

func newTestApp(t *testing.T, cfg *config.Configuration) (*app, *gin.Engine, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(security.NewRedactedHandler(slog.NewJSONHandler(logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		cancel()
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		a.Close()
	})
	return a, buildRouter(a), logs
}

func do(r http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return out
}

// ============================================================================
// END-TO-END SCENARIOS
// ============================================================================

func TestE2E_FallbackToNextProvider(t *testing.T) {
	gemini := newMockProvider(t, mockReply{status: http.StatusServiceUnavailable, body: `{"error":{"message":"overloaded"}}`})
	openai := newMockProvider(t, openAIReply(longAdvice))
	_, r, logs := newTestApp(t, testConfig(geminiConfig(gemini), openAIConfig(openai)))

	t.Log("Step 1: ask for advice while the first provider is unavailable")
	w := do(r, http.MethodPost, "/api/chat", `{"message":"my nose is bleeding"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["provider"] != "openai" || body["advice"] != longAdvice {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	t.Log("Step 2: both providers were tried once, in order")
	if gemini.calls() != 1 || openai.calls() != 1 {
		t.Fatalf("calls gemini=%d openai=%d", gemini.calls(), openai.calls())
	}
	if gemini.paths[0] != "/models/gemini-2.5-pro:generateContent" {
		t.Errorf("gemini path = %s", gemini.paths[0])
	}
	prompt := openai.body(0)["messages"].([]any)[0].(map[string]any)["content"].(string)
	if !strings.Contains(prompt, `"my nose is bleeding"`) {
		t.Errorf("prompt does not quote the message: %s", prompt)
	}

	t.Log("Step 3: the failed attempt is visible in metrics")
	metricsBody := do(r, http.MethodGet, "/metrics", "", nil).Body.String()
	for _, want := range []string{
		`preaid_dispatch_attempts_total{outcome="http_error",provider="gemini"} 1`,
		`preaid_dispatch_attempts_total{outcome="success",provider="openai"} 1`,
		`preaid_providers_available 2`,
	} {
		if !strings.Contains(metricsBody, want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	if !strings.Contains(logs.String(), `"order":"gemini,openai"`) {
		t.Errorf("dispatcher ready log missing fallback order: %s", logs.String())
	}
	if strings.Contains(logs.String(), testGeminiKey) {
		t.Error("credential leaked into logs")
	}
}

func TestE2E_ShortAnswerRetry(t *testing.T) {
	openai := newMockProvider(t, openAIReply("Rest."), openAIReply(longAdvice))
	_, r, _ := newTestApp(t, testConfig(openAIConfig(openai)))

	w := do(r, http.MethodPost, "/api/chat", `{"message":"I feel dizzy"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["advice"]; got != longAdvice {
		t.Errorf("advice = %v, want the detailed answer", got)
	}

	if openai.calls() != 2 {
		t.Fatalf("calls = %d, want 2", openai.calls())
	}
	retry := openai.body(1)
	if retry["temperature"] != 0.6 || retry["max_tokens"] != float64(1500) {
		t.Errorf("retry params = temperature %v, max_tokens %v", retry["temperature"], retry["max_tokens"])
	}
	if !strings.Contains(do(r, http.MethodGet, "/metrics", "", nil).Body.String(), "preaid_advice_retries_total 1") {
		t.Error("retry not counted")
	}
}

func TestE2E_AllProvidersFailed(t *testing.T) {
	gemini := newMockProvider(t, mockReply{status: http.StatusTooManyRequests, body: `{"error":{"message":"quota exceeded for key ` + testGeminiKey + `"}}`})
	openai := newMockProvider(t, mockReply{status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`})
	_, r, _ := newTestApp(t, testConfig(geminiConfig(gemini), openAIConfig(openai)))

	w := do(r, http.MethodPost, "/api/chat", `{"message":"burned my hand"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if strings.Contains(w.Body.String(), testGeminiKey) || strings.Contains(w.Body.String(), "quota") {
		t.Errorf("provider diagnostics leaked to client: %s", w.Body.String())
	}
	if body := decode(t, w); body["timestamp"] == nil || body["error"] == nil {
		t.Errorf("body = %v", body)
	}

	t.Log("Failures are not cached")
	do(r, http.MethodPost, "/api/chat", `{"message":"burned my hand"}`, nil)
	if gemini.calls() != 2 {
		t.Errorf("gemini calls = %d, want 2", gemini.calls())
	}
}

func TestE2E_NoProviderConfigured(t *testing.T) {
	gemini := newMockProvider(t, geminiReply(longAdvice))
	unconfigured := geminiConfig(gemini)
	unconfigured.APIKey = "your_api_key_here"
	_, r, _ := newTestApp(t, testConfig(unconfigured))

	w := do(r, http.MethodPost, "/api/chat", `{"message":"cut finger"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if gemini.calls() != 0 {
		t.Errorf("unconfigured provider was called %d times", gemini.calls())
	}

	health := decode(t, do(r, http.MethodGet, "/api/health", "", nil))
	if health["status"] != "degraded" {
		t.Errorf("health = %v", health)
	}
}

func TestE2E_ProvidersAndHealth(t *testing.T) {
	gemini := newMockProvider(t, geminiReply(longAdvice))
	disabled := false
	cfg := testConfig(
		geminiConfig(gemini),
		config.ProviderConfig{Name: domain.ProviderCohere},
		config.ProviderConfig{Name: domain.ProviderAnthropic, APIKey: "sk-ant-disabled-0123456789", Enabled: &disabled},
	)
	_, r, _ := newTestApp(t, cfg)

	w := do(r, http.MethodGet, "/api/providers", "", nil)
	var status domain.ProviderStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Total != 2 || status.AvailableCount != 1 {
		t.Errorf("status = %+v, want 1 of 2", status)
	}
	if strings.Contains(w.Body.String(), testGeminiKey) {
		t.Error("credential exposed by /api/providers")
	}

	health := decode(t, do(r, http.MethodGet, "/api/health", "", nil))
	if health["status"] != "ok" || health["providers_available"] != float64(1) {
		t.Errorf("health = %v", health)
	}
}

func TestE2E_ResponseCache(t *testing.T) {
	gemini := newMockProvider(t, geminiReply(longAdvice))
	_, r, _ := newTestApp(t, testConfig(geminiConfig(gemini)))

	first := do(r, http.MethodPost, "/api/health-advice", `{"issue":"wasp sting"}`, nil)
	second := do(r, http.MethodPost, "/api/health-advice", `{"issue":"wasp sting"}`, nil)

	if first.Code != http.StatusOK || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("first=%d second X-Cache=%q", first.Code, second.Header().Get("X-Cache"))
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	if gemini.calls() != 1 {
		t.Errorf("gemini calls = %d, want 1", gemini.calls())
	}
	if !strings.Contains(do(r, http.MethodGet, "/metrics", "", nil).Body.String(), `preaid_response_cache_lookups_total{result="hit"} 1`) {
		t.Error("cache hit not counted")
	}
}

func TestE2E_HistoryFlow(t *testing.T) {
	gemini := newMockProvider(t, geminiReply(longAdvice))
	a, r, _ := newTestApp(t, testConfig(geminiConfig(gemini)))

	token, err := a.verifier.IssueToken("user-42", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	auth := http.Header{"Authorization": {"Bearer " + token}}

	t.Log("Step 1: history requires a token")
	if w := do(r, http.MethodGet, "/api/history", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	t.Log("Step 2: an authenticated consultation is saved automatically")
	if w := do(r, http.MethodPost, "/api/chat", `{"message":"nosebleed"}`, auth); w.Code != http.StatusOK {
		t.Fatalf("chat status = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/history", `{"issue":"splinter","advice":"Use clean tweezers."}`, auth); w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}

	w := do(r, http.MethodGet, "/api/history", "", auth)
	var items []history.Consultation
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2: %s", len(items), w.Body.String())
	}
	issues := map[string]bool{items[0].Issue: true, items[1].Issue: true}
	if !issues["nosebleed"] || !issues["splinter"] {
		t.Errorf("items = %+v", items)
	}

	t.Log("Step 3: delete one item")
	if w := do(r, http.MethodDelete, "/api/history/"+items[0].ID, "", auth); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = do(r, http.MethodGet, "/api/history", "", auth)
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d after delete", len(items))
	}
}

func TestE2E_HistoryDisabled(t *testing.T) {
	gemini := newMockProvider(t, geminiReply(longAdvice))
	cfg := testConfig(geminiConfig(gemini))
	cfg.History.Enabled = false
	cfg.Metrics.Enabled = false
	a, r, _ := newTestApp(t, cfg)

	if w := do(r, http.MethodGet, "/api/history", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("history status = %d, want 404", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404", w.Code)
	}
	if got := len(a.endpoints()); got != 4 {
		t.Errorf("endpoints = %d, want 4", got)
	}

	t.Log("A bearer header is ignored without a verifier")
	w := do(r, http.MethodPost, "/api/chat", `{"message":"bruise"}`, http.Header{"Authorization": {"Bearer whatever-token"}})
	if w.Code != http.StatusOK {
		t.Errorf("chat status = %d", w.Code)
	}
}

func TestSetupLogger_RedactsCredentials(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := setupLogger(&buf, "json", level)

	logger.Info("calling provider",
		slog.String("url", "https://generativelanguage.googleapis.com/v1/models/x?key="+testGeminiKey),
		slog.String("api_key", testOpenAIKey),
	)
	logger.Debug("hidden")

	out := buf.String()
	if strings.Contains(out, testGeminiKey) || strings.Contains(out, testOpenAIKey) {
		t.Errorf("credential leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}

	buf.Reset()
	level.Set(slog.LevelDebug)
	setupLogger(&buf, "text", level).Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("text output = %q", buf.String())
	}
}
