// Package commands implements the assistantctl commands using cobra.
package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashureev/academy-assistant/internal/store"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assistantctl",
		Short: "Academy assistant operator tool",
		Long: `assistantctl talks to the academy assistant without the HTTP server.

Examples:
  assistantctl classify "je veux rejoindre un challenge"
  assistantctl seed --catalog ./catalog.yaml
  assistantctl chat --user demo-user`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newClassifyCmd(),
		newSeedCmd(),
		newChatCmd(),
	)

	rootCmd.PersistentFlags().String("db", "./data/academy.db", "path to the SQLite database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}

func loggerFor(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("db")
	return store.NewSQLite(path)
}
