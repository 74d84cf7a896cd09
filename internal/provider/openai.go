package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat APIs
// (OpenAI itself, ollama's /v1 endpoint, vLLM, ...).
type OpenAIProvider struct {
	config    ProviderConfig
	client    openai.Client
	maxTokens int64
	logger    *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider. SDK retries
// are disabled: a failed call is reported, not repeated.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIProvider{
		config:    cfg,
		client:    openai.NewClient(opts...),
		maxTokens: extraInt(cfg.Extra, "max_tokens", 0),
		logger:    logger,
	}
}

func (p *OpenAIProvider) ID() string   { return p.config.ID }
func (p *OpenAIProvider) Name() string { return p.config.displayName() }

// Invoke sends the prompt as a single user message.
func (p *OpenAIProvider) Invoke(ctx context.Context, model, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if sys := p.config.Extra["system"]; sys != "" {
		messages = append(messages, openai.SystemMessage(sys))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(p.maxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &InvocationError{Provider: p.config.ID, Model: model, Reason: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &InvocationError{Provider: p.config.ID, Model: model, Reason: "empty response from provider"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck lists models to verify the endpoint is reachable.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func extraInt(extra map[string]string, key string, def int64) int64 {
	v, ok := extra[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
