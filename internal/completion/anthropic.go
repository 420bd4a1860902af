package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicCompleter answers through the Anthropic Messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float32
	logger      *slog.Logger
}

// NewAnthropicCompleter creates a Messages API client for cfg.Model.
func NewAnthropicCompleter(cfg Config, logger *slog.Logger, opts ...option.RequestOption) (*AnthropicCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	logger.Info("anthropic completion provider ready", "model", model)
	return &AnthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Name implements Provider.
func (a *AnthropicCompleter) Name() string { return ProviderAnthropic }

// Close implements Provider.
func (a *AnthropicCompleter) Close() error { return nil }

// Complete implements assistant.Completer.
func (a *AnthropicCompleter) Complete(ctx context.Context, input string, summary assistant.CompactContext) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt(summary)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	}
	if a.temperature > 0 {
		params.Temperature = anthropic.Float(float64(a.temperature))
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
