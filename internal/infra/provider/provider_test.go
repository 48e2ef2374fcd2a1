package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/provider"
)

func testConfig(kind domain.BackendKind) *domain.ClientConfig {
	return &domain.ClientConfig{
		Name:         "test",
		Kind:         kind,
		APIKey:       "default-key",
		Model:        "test-model",
		MaxTokens:    128,
		Temperature:  0.2,
		Timeout:      2 * time.Second,
		SystemPrompt: "you are a network engineer",
	}
}

func requireTransportErr(t *testing.T, err error, status int) {
	t.Helper()
	var te *domain.ErrTransport
	if !errors.As(err, &te) {
		t.Fatalf("expected *domain.ErrTransport, got %T: %v", err, err)
	}
	if te.StatusCode != status {
		t.Errorf("expected status %d, got %d", status, te.StatusCode)
	}
}

// ============================================================
// OpenAI-shaped backend
// ============================================================

func TestOpenAIAdapter_Success(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer default-key" {
			t.Errorf("unexpected Authorization %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hostname R1"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	a := provider.NewOpenAIAdapter(provider.NewClientPool())
	text, err := a.Call(context.Background(), "configure R1", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendOpenAI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hostname R1" {
		t.Errorf("unexpected text %q", text)
	}
	if got.Model != "test-model" || got.MaxTokens != 128 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "configure R1" {
		t.Errorf("expected system + user messages, got %+v", got.Messages)
	}
}

func TestOpenAIAdapter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	a := provider.NewOpenAIAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendOpenAI))
	requireTransportErr(t, err, http.StatusServiceUnavailable)
}

func TestOpenAIAdapter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	a := provider.NewOpenAIAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendOpenAI))
	requireTransportErr(t, err, 0)
}

// ============================================================
// Anthropic-shaped backend
// ============================================================

func TestAnthropicAdapter_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "endpoint-key" {
			t.Errorf("expected endpoint credential override, got %q", key)
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Error("expected anthropic-version header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"test-model",` +
			`"content":[{"type":"text","text":"interface Gi0/0"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	a := provider.NewAnthropicAdapter(provider.NewClientPool())
	ep := domain.EndpointSpec{URL: srv.URL, APIKey: "endpoint-key"}
	text, err := a.Call(context.Background(), "p", ep, testConfig(domain.BackendAnthropic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "interface Gi0/0" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestAnthropicAdapter_ErrorStatus(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	a := provider.NewAnthropicAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendAnthropic))
	requireTransportErr(t, err, http.StatusInternalServerError)
	if hits != 1 {
		t.Errorf("expected the SDK not to retry, got %d requests", hits)
	}
}

// ============================================================
// Ollama-shaped backend
// ============================================================

func TestOllamaAdapter_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"test-model","response":"router ospf 1","done":true}`))
	}))
	defer srv.Close()

	a := provider.NewOllamaAdapter(provider.NewClientPool())
	text, err := a.Call(context.Background(), "ospf", domain.EndpointSpec{URL: srv.URL + "/"}, testConfig(domain.BackendOllama))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "router ospf 1" {
		t.Errorf("unexpected text %q", text)
	}
	if got["stream"] != false || got["system"] != "you are a network engineer" {
		t.Errorf("unexpected request body %v", got)
	}
	opts, _ := got["options"].(map[string]any)
	if opts["num_predict"] != float64(128) {
		t.Errorf("expected num_predict 128, got %v", opts["num_predict"])
	}
}

func TestOllamaAdapter_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	a := provider.NewOllamaAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendOllama))
	requireTransportErr(t, err, 0)
}

func TestOllamaAdapter_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := provider.NewOllamaAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendOllama))
	requireTransportErr(t, err, http.StatusNotFound)
}

// ============================================================
// Generic HTTP backend
// ============================================================

func TestGenericAdapter_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/complete" {
			t.Errorf("expected the endpoint URL itself, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer default-key" {
			t.Errorf("unexpected Authorization %q", auth)
		}
		_, _ = w.Write([]byte(`{"text":"vlan 10"}`))
	}))
	defer srv.Close()

	a := provider.NewGenericAdapter(provider.NewClientPool())
	text, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL + "/complete"}, testConfig(domain.BackendGeneric))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "vlan 10" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestGenericAdapter_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := provider.NewGenericAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL}, testConfig(domain.BackendGeneric))
	requireTransportErr(t, err, http.StatusOK)
}

func TestGenericAdapter_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := provider.NewGenericAdapter(provider.NewClientPool())
	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: url}, testConfig(domain.BackendGeneric))
	requireTransportErr(t, err, 0)
}

func TestGenericAdapter_TLSVerificationPerEndpoint(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	pool := provider.NewClientPool()
	a := provider.NewGenericAdapter(pool)
	cfg := testConfig(domain.BackendGeneric)

	if _, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL, VerifySSL: false}, cfg); err != nil {
		t.Fatalf("expected self-signed endpoint to work without verification: %v", err)
	}

	_, err := a.Call(context.Background(), "p", domain.EndpointSpec{URL: srv.URL, VerifySSL: true}, cfg)
	requireTransportErr(t, err, 0)

	if pool.Len() != 2 {
		t.Errorf("expected one client per verification mode, got %d", pool.Len())
	}
}

// ============================================================
// Factory and pool
// ============================================================

func TestAdapterFactory(t *testing.T) {
	factory := provider.NewAdapterFactory(nil)

	for _, kind := range []domain.BackendKind{domain.BackendOpenAI, domain.BackendAnthropic, domain.BackendOllama, domain.BackendGeneric} {
		if a, err := factory(kind); err != nil || a == nil {
			t.Errorf("expected adapter for %s, got %v", kind, err)
		}
	}

	_, err := factory("carrier-pigeon")
	var ce *domain.ErrConfig
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.ErrConfig, got %v", err)
	}
}

func TestClientPool_ReusesClients(t *testing.T) {
	pool := provider.NewClientPool()

	a := pool.Client(true, time.Second)
	b := pool.Client(true, time.Second)
	c := pool.Client(true, 2*time.Second)

	if a != b {
		t.Error("expected identical key to reuse the client")
	}
	if a == c {
		t.Error("expected a different timeout to build a new client")
	}
	if a.Timeout != time.Second {
		t.Errorf("unexpected timeout %s", a.Timeout)
	}
}
