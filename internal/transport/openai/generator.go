// Package openai invokes an OpenAI-compatible chat completion API to
// synthesize answers grounded in retrieved context.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
)

const noContextPlaceholder = "No additional context available."

// Generator produces grounded answers via a single chat completion call. It
// carries no retry policy; outputs may vary across calls.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// Config holds the model provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// NewGenerator creates a chat-completion answer synthesizer.
func NewGenerator(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Generate builds a grounded prompt from the context passages and returns the
// model output verbatim.
func (g *Generator) Generate(ctx context.Context, query string, passages []string) (string, error) {
	prompt := buildPrompt(query, passages)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", domain.ErrExternalService)
	}

	g.logger.Debug("answer generated",
		zap.String("model", g.model),
		zap.Int("context_passages", len(passages)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

// buildPrompt joins passages with blank lines and instructs the model to
// answer only from the supplied context, admitting insufficiency rather than
// fabricating.
func buildPrompt(query string, passages []string) string {
	contextStr := noContextPlaceholder
	if len(passages) > 0 {
		contextStr = strings.Join(passages, "\n\n")
	}

	return fmt.Sprintf(`You are a helpful AI assistant. Answer the user's question using the provided context.

Context:
%s

User Question: %s

Provide a clear, accurate answer based on the context. If the context doesn't contain enough information, say so.`, contextStr, query)
}

// parseAPIError extracts a readable message from the provider error. All
// failures are wrapped with ErrExternalService for correct 502 mapping.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: completion API error %d: %s",
			domain.ErrExternalService, reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: completion API error %d: %s",
			domain.ErrExternalService, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: completion request failed: %v", domain.ErrExternalService, err)
}
