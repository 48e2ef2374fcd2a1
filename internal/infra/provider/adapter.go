package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/port"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// NewAdapterFactory returns a factory resolving every supported kind to an
// adapter sharing pool.
func NewAdapterFactory(pool *ClientPool) port.AdapterFactory {
	if pool == nil {
		pool = NewClientPool()
	}
	adapters := map[domain.BackendKind]port.ProviderAdapter{
		domain.BackendOpenAI:    NewOpenAIAdapter(pool),
		domain.BackendAnthropic: NewAnthropicAdapter(pool),
		domain.BackendOllama:    NewOllamaAdapter(pool),
		domain.BackendGeneric:   NewGenericAdapter(pool),
	}
	return func(kind domain.BackendKind) (port.ProviderAdapter, error) {
		a, ok := adapters[kind]
		if !ok {
			return nil, &domain.ErrConfig{Field: "kind", Message: fmt.Sprintf("no adapter for backend kind %q", kind)}
		}
		return a, nil
	}
}

func transportErr(cfg *domain.ClientConfig, endpoint string, status int, err error) *domain.ErrTransport {
	return &domain.ErrTransport{Backend: cfg.Name, Endpoint: endpoint, StatusCode: status, Err: err}
}

// postJSON posts body to url and decodes a 2xx response into out.
// Every failure comes back as *domain.ErrTransport.
func postJSON(ctx context.Context, client *http.Client, cfg *domain.ClientConfig, endpoint, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return transportErr(cfg, endpoint, 0, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return transportErr(cfg, endpoint, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportErr(cfg, endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return transportErr(cfg, endpoint, resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportErr(cfg, endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func trimURL(u string) string {
	return strings.TrimRight(u, "/")
}
