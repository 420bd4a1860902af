// Academy assistant server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/academy-assistant/internal/agent"
	"github.com/ashureev/academy-assistant/internal/api"
	"github.com/ashureev/academy-assistant/internal/assistant"
	"github.com/ashureev/academy-assistant/internal/completion"
	"github.com/ashureev/academy-assistant/internal/config"
	"github.com/ashureev/academy-assistant/internal/identity"
	"github.com/ashureev/academy-assistant/internal/middleware"
	"github.com/ashureev/academy-assistant/internal/store"
	"github.com/ashureev/academy-assistant/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "container", config.IsContainer())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedCatalog {
		if err := seedCatalog(ctx, repo, cfg.CatalogPath); err != nil {
			slog.Error("Failed to seed catalog", "error", err)
			os.Exit(1)
		}
	}

	provider, err := completion.New(ctx, completion.Config{
		Provider:    cfg.Fallback.Provider,
		Model:       cfg.Fallback.Model,
		APIKey:      cfg.Fallback.APIKey,
		GrpcAddr:    cfg.Fallback.GrpcAddr,
		MaxTokens:   cfg.Fallback.MaxTokens,
		Temperature: cfg.Fallback.Temperature,
	}, logger)
	if err != nil {
		slog.Warn("Completion provider unavailable, fallback disabled", "provider", cfg.Fallback.Provider, "error", err)
	}
	var router *assistant.FallbackRouter
	var providerHealth api.HealthChecker
	if provider != nil {
		defer func() {
			if closeErr := provider.Close(); closeErr != nil {
				slog.Warn("Failed to close completion provider", "error", closeErr)
			}
		}()
		router = assistant.NewFallbackRouter(provider, cfg.Fallback.Timeout, logger)
		if hc, ok := provider.(api.HealthChecker); ok {
			providerHealth = hc
		}
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	deps := assistant.DependenciesFrom(repo)
	registry := agent.NewSessionRegistry(func() *assistant.Session {
		return assistant.NewSession(deps, assistant.WithLogger(logger), assistant.WithFallback(router))
	}, logger)
	conns := agent.NewConnManager()
	limiter := agent.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	broadcaster := agent.NewBroadcaster(agent.BroadcasterConfig{
		QueueSize:  cfg.SSE.QueueSize,
		ReplaySize: cfg.SSE.ReplaySize,
		KeepAlive:  cfg.SSE.KeepAlive,
	}, conversationLogger, logger)
	registry.OnExpire(func(userID, sessionID string) {
		broadcaster.Forget(userID, sessionID)
		conns.CloseSession(userID, sessionID)
	})

	// Initialize handlers.
	assistantHandler := agent.NewHandler(registry, limiter, broadcaster, conversationLogger, logger)
	defer assistantHandler.Close()
	wsHandler := agent.NewWebSocketHandler(registry, conns, limiter, conversationLogger, cfg.FrontendURL, cfg.IsDevelopment(), logger)
	healthHandler := api.NewHealthHandler(repo, providerHealth, 5*time.Second)
	accountHandler := api.NewAccountHandler(repo, api.ClientConfig{
		FallbackEnabled:   router.Enabled(),
		FallbackProvider:  providerName(provider),
		ProactiveEnabled:  cfg.Proactive.Enabled,
		ProactiveInterval: int64(cfg.Proactive.Interval.Seconds()),
		MaxHistory:        assistant.MaxHistory,
	})

	scheduler := agent.NewScheduler(registry, broadcaster, agent.SchedulerConfig{
		Proactive:  cfg.Proactive.Enabled,
		Interval:   cfg.Proactive.Interval,
		Cooldown:   cfg.Proactive.Cooldown,
		SessionTTL: cfg.SessionTTL,
	}, logger)
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedHeaders: []string{identity.SessionHeaderName, identity.DevUserHeaderName},
	}))

	// Public routes.
	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		accountHandler.RegisterRoutes(r)
		assistantHandler.RegisterRoutes(r)
		r.Get("/ws/assistant", wsHandler.ServeHTTP)
	})

	// Serve the embedded chat page.
	r.Handle("/*", web.ChatPageHandler())

	// SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func seedCatalog(ctx context.Context, repo store.Repository, path string) error {
	catalog, err := store.LoadCatalogFile(path)
	if err != nil {
		return err
	}
	if err := repo.ImportCatalog(ctx, catalog); err != nil {
		return err
	}
	slog.Info("Catalog seeded", "modules", len(catalog.Modules), "challenges", len(catalog.Challenges), "source", path)
	return nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

func providerName(p completion.Provider) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
