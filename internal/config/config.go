// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	SeedCatalog     bool
	CatalogPath     string // optional YAML catalog replacing the embedded one
	SessionTTL      time.Duration
	LogLevel        string
	Fallback        FallbackConfig
	Proactive       ProactiveConfig
	RateLimit       RateLimitConfig
	SSE             SSEConfig
	ConversationLog ConversationLogConfig
}

// FallbackConfig selects the generative provider used for low-confidence replies.
type FallbackConfig struct {
	Provider    string // none, grpc, gemini, anthropic
	Model       string
	APIKey      string
	GrpcAddr    string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// ProactiveConfig controls assistant-initiated suggestions.
type ProactiveConfig struct {
	Enabled  bool
	Interval time.Duration
	Cooldown time.Duration
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// SSEConfig sizes the proactive event stream.
type SSEConfig struct {
	QueueSize  int
	ReplaySize int
	KeepAlive  time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	provider := strings.ToLower(strings.TrimSpace(getEnv("FALLBACK_PROVIDER", "none")))

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/academy.db"),
		SeedCatalog: getEnvBool("SEED_CATALOG", true),
		CatalogPath: getEnv("CATALOG_PATH", ""),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Fallback: FallbackConfig{
			Provider:    provider,
			Model:       getEnv("FALLBACK_MODEL", ""),
			APIKey:      fallbackAPIKey(provider),
			GrpcAddr:    getEnv("FALLBACK_GRPC_ADDR", "localhost:50051"),
			Timeout:     getEnvDuration("FALLBACK_TIMEOUT", 15*time.Second),
			MaxTokens:   getEnvInt("FALLBACK_MAX_TOKENS", 600),
			Temperature: float32(getEnvFloat("FALLBACK_TEMPERATURE", 0.4)),
		},
		Proactive: ProactiveConfig{
			Enabled:  getEnvBool("PROACTIVE_ENABLED", true),
			Interval: getEnvDuration("PROACTIVE_INTERVAL", time.Minute),
			Cooldown: getEnvDuration("PROACTIVE_COOLDOWN", 30*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("CHAT_RATE_LIMIT_PER_MINUTE", 20),
			Burst:             getEnvInt("CHAT_RATE_LIMIT_BURST", 5),
		},
		SSE: SSEConfig{
			QueueSize:  getEnvInt("SSE_QUEUE_SIZE", 32),
			ReplaySize: getEnvInt("SSE_REPLAY_SIZE", 50),
			KeepAlive:  getEnvDuration("SSE_KEEPALIVE", 25*time.Second),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	switch c.Fallback.Provider {
	case "", "none", "grpc":
	case "gemini", "anthropic":
		if c.Fallback.APIKey == "" {
			return fmt.Errorf("FALLBACK_API_KEY is required for provider %q", c.Fallback.Provider)
		}
	default:
		return fmt.Errorf("FALLBACK_PROVIDER %q is not supported", c.Fallback.Provider)
	}
	if c.Fallback.Timeout <= 0 {
		return fmt.Errorf("FALLBACK_TIMEOUT must be > 0")
	}
	if c.Proactive.Enabled && c.Proactive.Interval < time.Second {
		return fmt.Errorf("PROACTIVE_INTERVAL must be at least 1s")
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_PER_MINUTE and CHAT_RATE_LIMIT_BURST must be > 0")
	}
	if c.SSE.QueueSize <= 0 || c.SSE.ReplaySize <= 0 {
		return fmt.Errorf("SSE_QUEUE_SIZE and SSE_REPLAY_SIZE must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// fallbackAPIKey prefers FALLBACK_API_KEY, then the vendor variable of provider.
func fallbackAPIKey(provider string) string {
	if key := getEnv("FALLBACK_API_KEY", ""); key != "" {
		return key
	}
	switch provider {
	case "gemini":
		return getEnv("GOOGLE_API_KEY", "")
	case "anthropic":
		return getEnv("ANTHROPIC_API_KEY", "")
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// IsContainer returns true if running inside a container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
