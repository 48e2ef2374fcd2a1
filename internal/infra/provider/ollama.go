package provider

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boddenberg/netgen/internal/domain"
)

// OllamaAdapter speaks the local daemon shape: POST {url}/api/generate.
type OllamaAdapter struct {
	pool *ClientPool
}

// NewOllamaAdapter creates an OllamaAdapter.
func NewOllamaAdapter(pool *ClientPool) *OllamaAdapter {
	return &OllamaAdapter{pool: pool}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
	System  string        `json:"system,omitempty"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
}

// Call issues a non-streaming generate request.
func (a *OllamaAdapter) Call(ctx context.Context, prompt string, endpoint domain.EndpointSpec, cfg *domain.ClientConfig) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaAdapter.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", cfg.Name),
		attribute.String("endpoint", endpoint.URL),
		attribute.String("model", cfg.Model),
	)

	body := ollamaRequest{
		Model:  cfg.Model,
		Prompt: prompt,
		Options: ollamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
		},
		System: cfg.SystemPrompt,
	}

	var headers map[string]string
	if key := endpoint.Credential(cfg.APIKey); key != "" {
		headers = map[string]string{"Authorization": "Bearer " + key}
	}

	var out ollamaResponse
	client := a.pool.Client(endpoint.VerifySSL, cfg.Timeout)
	if err := postJSON(ctx, client, cfg, endpoint.URL, trimURL(endpoint.URL)+"/api/generate", headers, body, &out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if out.Response == nil {
		return "", transportErr(cfg, endpoint.URL, 0, errors.New("response field missing"))
	}
	if *out.Response == "" {
		return "", transportErr(cfg, endpoint.URL, 0, errors.New("empty response"))
	}
	return *out.Response, nil
}
