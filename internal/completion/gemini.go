package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiCompleter answers through the Gemini API.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	logger      *slog.Logger
}

// NewGeminiCompleter creates a Gemini client for cfg.Model.
func NewGeminiCompleter(ctx context.Context, cfg Config, logger *slog.Logger) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger.Info("gemini completion provider ready", "model", model)
	return &GeminiCompleter{
		client:      client,
		model:       model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Name implements Provider.
func (g *GeminiCompleter) Name() string { return ProviderGemini }

// Close implements Provider. The client holds no connection of its own.
func (g *GeminiCompleter) Close() error { return nil }

// Complete implements assistant.Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, input string, summary assistant.CompactContext) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(input, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(summary), genai.RoleUser),
		MaxOutputTokens:   g.maxTokens,
	}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(g.temperature)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
