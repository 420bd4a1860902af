package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "./data/academy.db")
	t.Setenv("FALLBACK_PROVIDER", "none")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("FALLBACK_TIMEOUT", "15s")
	t.Setenv("PROACTIVE_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.Fallback.Timeout != 15*time.Second {
		t.Errorf("Fallback.Timeout = %v, want 15s", cfg.Fallback.Timeout)
	}
	if cfg.Fallback.Provider != "none" {
		t.Errorf("Fallback.Provider = %q", cfg.Fallback.Provider)
	}
}

func TestLoadProviderAPIKey(t *testing.T) {
	t.Setenv("FALLBACK_PROVIDER", "Gemini")
	t.Setenv("FALLBACK_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fallback.Provider != "gemini" || cfg.Fallback.APIKey != "g-key" {
		t.Errorf("Fallback = %+v", cfg.Fallback)
	}

	t.Setenv("GOOGLE_API_KEY", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FALLBACK_API_KEY") {
		t.Errorf("Load() without key error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Port:       "8080",
			DBPath:     "db",
			SessionTTL: time.Hour,
			Fallback:   FallbackConfig{Provider: "none", Timeout: time.Second},
			Proactive:  ProactiveConfig{Enabled: true, Interval: time.Minute},
			RateLimit:  RateLimitConfig{RequestsPerMinute: 10, Burst: 2},
			SSE:        SSEConfig{QueueSize: 8, ReplaySize: 8},
			ConversationLog: ConversationLogConfig{
				Dir:        "logs",
				GlobalPath: "logs/all.ndjson",
				QueueSize:  10,
			},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := map[string]func(*Config){
		"empty port":       func(c *Config) { c.Port = "" },
		"empty db":         func(c *Config) { c.DBPath = "" },
		"zero ttl":         func(c *Config) { c.SessionTTL = 0 },
		"unknown provider": func(c *Config) { c.Fallback.Provider = "openai" },
		"zero timeout":     func(c *Config) { c.Fallback.Timeout = 0 },
		"fast proactive":   func(c *Config) { c.Proactive.Interval = time.Millisecond },
		"zero rate":        func(c *Config) { c.RateLimit.Burst = 0 },
		"zero sse queue":   func(c *Config) { c.SSE.QueueSize = 0 },
		"empty log dir":    func(c *Config) { c.ConversationLog.Dir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v", got)
	}
	t.Setenv("TEST_DURATION", "soon")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration(invalid) = %v", got)
	}
}
