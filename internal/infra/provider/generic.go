package provider

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boddenberg/netgen/internal/domain"
)

// GenericAdapter posts the prompt to the endpoint URL itself and reads the
// "text" field of the reply.
type GenericAdapter struct {
	pool *ClientPool
}

// NewGenericAdapter creates a GenericAdapter.
func NewGenericAdapter(pool *ClientPool) *GenericAdapter {
	return &GenericAdapter{pool: pool}
}

type genericRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type genericResponse struct {
	Text *string `json:"text"`
}

// Call posts one completion request.
func (a *GenericAdapter) Call(ctx context.Context, prompt string, endpoint domain.EndpointSpec, cfg *domain.ClientConfig) (string, error) {
	ctx, span := tracer.Start(ctx, "GenericAdapter.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", cfg.Name),
		attribute.String("endpoint", endpoint.URL),
	)

	body := genericRequest{
		Model:       cfg.Model,
		Prompt:      prompt,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var headers map[string]string
	if key := endpoint.Credential(cfg.APIKey); key != "" {
		headers = map[string]string{"Authorization": "Bearer " + key}
	}

	var out genericResponse
	client := a.pool.Client(endpoint.VerifySSL, cfg.Timeout)
	if err := postJSON(ctx, client, cfg, endpoint.URL, endpoint.URL, headers, body, &out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if out.Text == nil {
		return "", transportErr(cfg, endpoint.URL, 0, errors.New("text field missing"))
	}
	if *out.Text == "" {
		return "", transportErr(cfg, endpoint.URL, 0, errors.New("empty text"))
	}
	return *out.Text, nil
}
