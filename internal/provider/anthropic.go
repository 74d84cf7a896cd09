package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// AnthropicProvider implements Provider for the Claude Messages API.
type AnthropicProvider struct {
	config    ProviderConfig
	client    anthropic.Client
	maxTokens int64
	logger    *zap.Logger
}

// NewAnthropicProvider creates a new Anthropic provider with SDK retries disabled.
func NewAnthropicProvider(cfg ProviderConfig, logger *zap.Logger) *AnthropicProvider {
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
	return &AnthropicProvider{
		config:    cfg,
		client:    anthropic.NewClient(opts...),
		maxTokens: extraInt(cfg.Extra, "max_tokens", 4096),
		logger:    logger,
	}
}

func (p *AnthropicProvider) ID() string   { return p.config.ID }
func (p *AnthropicProvider) Name() string { return p.config.displayName() }

// Invoke sends the prompt as a single user turn and joins the text blocks.
func (p *AnthropicProvider) Invoke(ctx context.Context, model, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if sys := p.config.Extra["system"]; sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &InvocationError{Provider: p.config.ID, Model: model, Reason: err.Error(), Err: err}
	}

	var buf strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			buf.WriteString(b.Text)
		}
	}
	if buf.Len() == 0 {
		return "", &InvocationError{Provider: p.config.ID, Model: model, Reason: "response carried no text content"}
	}
	return strings.TrimSpace(buf.String()), nil
}

// HealthCheck only checks that a key is configured; the Messages API has
// no free liveness endpoint.
func (p *AnthropicProvider) HealthCheck(_ context.Context) error {
	if p.config.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("anthropic provider %s: no api key configured", p.config.ID)
	}
	return nil
}
