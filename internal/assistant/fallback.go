package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FallbackConfidence is the confidence assigned to provider replies.
const FallbackConfidence = 0.85

// DefaultFallbackTimeout bounds a provider call when no timeout is configured.
const DefaultFallbackTimeout = 15 * time.Second

// ErrEmptyCompletion is returned when the provider answers with blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// FallbackRouter delegates low-confidence replies to a Completer.
type FallbackRouter struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFallbackRouter creates a router. A nil completer disables it: Route then
// always returns nil.
func NewFallbackRouter(completer Completer, timeout time.Duration, logger *slog.Logger) *FallbackRouter {
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackRouter{
		completer: completer,
		timeout:   timeout,
		logger:    logger,
	}
}

// Enabled reports whether a completer is configured.
func (f *FallbackRouter) Enabled() bool {
	return f != nil && f.completer != nil
}

// Route returns a replacement for original when its confidence is below
// FallbackThreshold and the provider answers. It returns nil otherwise,
// including on provider error, timeout, cancellation or blank output; the
// caller then keeps original.
func (f *FallbackRouter) Route(ctx context.Context, input string, original Response, sc *SessionContext) *Response {
	if !f.Enabled() || original.Confidence >= FallbackThreshold {
		return nil
	}

	start := time.Now()
	text, err := f.complete(ctx, input, sc.Compact())
	if err != nil {
		f.logger.Warn("fallback completion failed",
			"user_id", userIDOf(sc),
			"intent", original.Intent,
			"duration", time.Since(start),
			"error", err,
		)
		return nil
	}
	f.logger.Debug("fallback completion succeeded",
		"user_id", userIDOf(sc),
		"intent", original.Intent,
		"duration", time.Since(start),
	)

	return &Response{
		Message:     text,
		Actions:     []Action{},
		Suggestions: append([]string{}, original.Suggestions...),
		Confidence:  FallbackConfidence,
		Intent:      original.Intent,
		Fallback:    true,
	}
}

func (f *FallbackRouter) complete(ctx context.Context, input string, summary CompactContext) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completer panic: %v", r)
		}
	}()

	text, err = f.completer.Complete(ctx, input, summary)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	// A late answer after the deadline is still a failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("complete: %w", ctxErr)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func userIDOf(sc *SessionContext) string {
	if sc == nil {
		return ""
	}
	return sc.UserID
}
