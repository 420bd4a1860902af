package commands

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/academy-assistant/internal/assistant"
	"github.com/ashureev/academy-assistant/internal/completion"
	"github.com/ashureev/academy-assistant/internal/config"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Sends a single message, or starts an interactive loop when no
message is given. Type /quit or send EOF to leave.

Examples:
  assistantctl chat --user demo-user "où en suis-je ?"
  assistantctl chat --user demo-user`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
	cmd.Flags().StringP("user", "u", "", "member ID to bind the session to (anonymous when empty)")
	cmd.Flags().Bool("no-fallback", false, "never consult the FALLBACK_PROVIDER completer")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	repo, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	logger := loggerFor(cmd)
	router, closeRouter, err := newFallbackRouter(cmd, logger)
	if err != nil {
		return err
	}
	defer closeRouter()

	userID, _ := cmd.Flags().GetString("user")
	session := assistant.NewSession(assistant.DependenciesFrom(repo),
		assistant.WithLogger(logger),
		assistant.WithFallback(router),
	)
	session.InitializeContext(cmd.Context(), userID)

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		resp, _ := session.Exchange(cmd.Context(), args[0])
		return printResponse(out, resp)
	}
	return chatLoop(cmd, session, cmd.InOrStdin(), out)
}

// newFallbackRouter builds the completion provider from the FALLBACK_*
// environment, as the server does. An unreachable provider only disables the
// fallback.
func newFallbackRouter(cmd *cobra.Command, logger *slog.Logger) (*assistant.FallbackRouter, func(), error) {
	noop := func() {}
	if off, _ := cmd.Flags().GetBool("no-fallback"); off {
		return nil, noop, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, noop, err
	}

	provider, err := completion.New(cmd.Context(), completion.Config{
		Provider:    cfg.Fallback.Provider,
		Model:       cfg.Fallback.Model,
		APIKey:      cfg.Fallback.APIKey,
		GrpcAddr:    cfg.Fallback.GrpcAddr,
		MaxTokens:   cfg.Fallback.MaxTokens,
		Temperature: cfg.Fallback.Temperature,
	}, logger)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "fallback disabled: %v\n", err)
		return nil, noop, nil
	}
	if provider == nil {
		return nil, noop, nil
	}
	closeProvider := func() {
		if err := provider.Close(); err != nil {
			logger.Warn("failed to close completion provider", "error", err)
		}
	}
	return assistant.NewFallbackRouter(provider, cfg.Fallback.Timeout, logger), closeProvider, nil
}

func chatLoop(cmd *cobra.Command, session *assistant.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/suggest":
			if resp := session.GenerateProactiveSuggestions(); resp != nil {
				if err := printResponse(out, *resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, "(no suggestion)")
			}
			continue
		}
		resp, _ := session.Exchange(cmd.Context(), line)
		if err := printResponse(out, resp); err != nil {
			return err
		}
	}
}

func printResponse(w io.Writer, resp assistant.Response) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", resp.Message)
	for _, a := range resp.Actions {
		fmt.Fprintf(&b, "  [%s] %s\n", a.Type, a.Label)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(&b, "  suggestions: %s\n", strings.Join(resp.Suggestions, " | "))
	}
	fmt.Fprintf(&b, "  (%s, %.2f)\n", resp.Intent, resp.Confidence)
	_, err := io.WriteString(w, b.String())
	return err
}
