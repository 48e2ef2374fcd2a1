package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boddenberg/netgen/internal/domain"
)

// OpenAIAdapter speaks the chat-completions shape: POST {url}/chat/completions.
type OpenAIAdapter struct {
	pool *ClientPool
}

// NewOpenAIAdapter creates an OpenAIAdapter.
func NewOpenAIAdapter(pool *ClientPool) *OpenAIAdapter {
	return &OpenAIAdapter{pool: pool}
}

// Call sends the system prompt and prompt as a two-message conversation and
// returns the first choice.
func (a *OpenAIAdapter) Call(ctx context.Context, prompt string, endpoint domain.EndpointSpec, cfg *domain.ClientConfig) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIAdapter.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", cfg.Name),
		attribute.String("endpoint", endpoint.URL),
		attribute.String("model", cfg.Model),
	)

	config := openai.DefaultConfig(endpoint.Credential(cfg.APIKey))
	config.BaseURL = trimURL(endpoint.URL)
	config.HTTPClient = a.pool.Client(endpoint.VerifySSL, cfg.Timeout)
	client := openai.NewClientWithConfig(config)

	var messages []openai.ChatCompletionMessage
	if cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: cfg.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", transportErr(cfg, endpoint.URL, openAIStatus(err), err)
	}

	if len(resp.Choices) == 0 {
		return "", transportErr(cfg, endpoint.URL, 0, errors.New("response has no choices"))
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", transportErr(cfg, endpoint.URL, 0, fmt.Errorf("empty content in choice 0 (finish_reason=%s)", resp.Choices[0].FinishReason))
	}
	return text, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
