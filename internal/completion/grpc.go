package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

// Names of the completion sidecar service.
const (
	CompletionServiceName = "academy.assistant.v1.CompletionService"
	completeMethod        = "/" + CompletionServiceName + "/Complete"
	defaultGrpcAddr       = "localhost:50051"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errCompletionResponse       = errors.New("completion response returned error")
)

// GrpcCompleter calls a completion sidecar over gRPC. Requests and replies
// are google.protobuf.Struct messages:
//
//	request:  {input, system, context{...}}
//	response: {message} or {error}
type GrpcCompleter struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewGrpcCompleter connects to the sidecar at cfg.GrpcAddr and waits until the
// connection is ready so a bad endpoint fails at startup.
func NewGrpcCompleter(ctx context.Context, cfg Config, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcCompleter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.GrpcAddr
	if addr == "" {
		addr = defaultGrpcAddr
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	kacp := keepalive.ClientParameters{
		Time:                2 * time.Minute,
		Timeout:             10 * time.Second,
		PermitWithoutStream: false,
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create completion client for %s: %w", addr, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("completion service at %s not ready: %w", addr, err)
	}

	logger.Info("connected to completion service", "address", addr)
	return &GrpcCompleter{conn: conn, addr: addr, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name implements Provider.
func (c *GrpcCompleter) Name() string { return ProviderGRPC }

// Close closes the gRPC connection.
func (c *GrpcCompleter) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close completion connection: %w", err)
	}
	return nil
}

// Health reports whether the sidecar declares the completion service as serving.
func (c *GrpcCompleter) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: CompletionServiceName,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("completion service status %s", resp.GetStatus())
	}
	return nil
}

// Complete implements assistant.Completer.
func (c *GrpcCompleter) Complete(ctx context.Context, input string, summary assistant.CompactContext) (string, error) {
	req, err := buildCompletionRequest(input, summary)
	if err != nil {
		return "", err
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, completeMethod, req, reply); err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	fields := reply.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errCompletionResponse, msg)
	}
	return strings.TrimSpace(fields["message"].GetStringValue()), nil
}

func buildCompletionRequest(input string, summary assistant.CompactContext) (*structpb.Struct, error) {
	challenges := make([]any, 0, len(summary.Challenges))
	for _, ch := range summary.Challenges {
		challenges = append(challenges, map[string]any{
			"title":    ch.Title,
			"progress": ch.Progress,
			"target":   ch.Target,
			"joined":   ch.Joined,
		})
	}

	req, err := structpb.NewStruct(map[string]any{
		"input":  input,
		"system": SystemPrompt(summary),
		"context": map[string]any{
			"user_name":         summary.UserName,
			"completed_modules": summary.CompletedModules,
			"total_modules":     summary.TotalModules,
			"completed_lessons": summary.CompletedLessons,
			"total_lessons":     summary.TotalLessons,
			"continue_module":   summary.ContinueModule,
			"continue_lesson":   summary.ContinueLesson,
			"challenges":        challenges,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	return req, nil
}
