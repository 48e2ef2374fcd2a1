package provider

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boddenberg/netgen/internal/domain"
)

// AnthropicAdapter speaks the messages shape: POST {url}/v1/messages.
type AnthropicAdapter struct {
	pool *ClientPool
}

// NewAnthropicAdapter creates an AnthropicAdapter.
func NewAnthropicAdapter(pool *ClientPool) *AnthropicAdapter {
	return &AnthropicAdapter{pool: pool}
}

// Call returns the first text block of the reply.
func (a *AnthropicAdapter) Call(ctx context.Context, prompt string, endpoint domain.EndpointSpec, cfg *domain.ClientConfig) (string, error) {
	ctx, span := tracer.Start(ctx, "AnthropicAdapter.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", cfg.Name),
		attribute.String("endpoint", endpoint.URL),
		attribute.String("model", cfg.Model),
	)

	// Retries belong to the orchestrator.
	client := anthropic.NewClient(
		option.WithAPIKey(endpoint.Credential(cfg.APIKey)),
		option.WithBaseURL(trimURL(endpoint.URL)+"/"),
		option.WithHTTPClient(a.pool.Client(endpoint.VerifySSL, cfg.Timeout)),
		option.WithMaxRetries(0),
	)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   int64(cfg.MaxTokens),
		Temperature: anthropic.Float(cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: cfg.SystemPrompt}}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", transportErr(cfg, endpoint.URL, status, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", transportErr(cfg, endpoint.URL, 0, errors.New("response has no text content block"))
}
