package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the intent and handler confidence for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			intent := assistant.AnalyzeIntent(text)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.2f\n", intent, assistant.HandlerConfidence(intent))
			return err
		},
	}
}
