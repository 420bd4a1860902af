// Package completion provides the generative text providers the assistant
// falls back to when its own replies are not confident enough.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

// Provider names accepted by New.
const (
	ProviderNone      = "none"
	ProviderGRPC      = "grpc"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown completion provider")
	// ErrMissingAPIKey is returned when a hosted provider has no key.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	GrpcAddr    string
	MaxTokens   int
	Temperature float32
	// ConnectTimeout bounds the readiness wait of the gRPC provider.
	ConnectTimeout time.Duration
}

// Provider is a Completer holding resources that must be released.
type Provider interface {
	assistant.Completer
	Name() string
	Close() error
}

// New builds the provider named by cfg.Provider. It returns (nil, nil) when
// no provider is configured.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "", ProviderNone:
		logger.Info("completion fallback disabled")
		return nil, nil
	case ProviderGRPC:
		c, err := NewGrpcCompleter(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiCompleter(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		c, err := NewAnthropicCompleter(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
