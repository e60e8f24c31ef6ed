package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"satyam-ai-go/internal/model"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Long:  `Run the full pipeline (rewrite, retrieval, arbitration) for one question without chat history.`,
		Example: `  satyamctl ask "What is Section 302 IPC?"
  satyamctl ask 420 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := opts.core(cmd)
			if err != nil {
				return err
			}
			result := core.Chat.Answer(cmd.Context(), strings.Join(args, " "), nil)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func printResult(w io.Writer, result model.AnswerResult) {
	fmt.Fprintln(w, result.Answer)
	fmt.Fprintln(w)
	regime := "general knowledge"
	if result.Grounded() {
		regime = "verified database"
	}
	fmt.Fprintf(w, "Confidence: %d (%s)\n", result.Confidence, regime)
	for _, s := range result.Sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}
