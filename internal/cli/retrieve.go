package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/internal/service"
)

func newRetrieveCmd(opts *rootOptions) *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Show the chunks retrieved for a query",
		Long:  `Embed the query and print the provenance-annotated contexts and source labels, without calling the LLM.`,
		Example: `  satyamctl retrieve "section 37"
  satyamctl retrieve 302 --top-k 3 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := service.NormalizeQuery(strings.Join(args, " "))
			if err != nil {
				return err
			}
			core, err := opts.core(cmd)
			if err != nil {
				return err
			}
			items, err := core.Retriever.Retrieve(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			printItems(cmd.OutOrStdout(), query, items)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of neighbours to fetch (0 uses rag.top_k)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func printItems(w io.Writer, query string, items []model.RetrievedItem) {
	if len(items) == 0 {
		fmt.Fprintf(w, "No chunks retrieved for %q.\n", query)
		return
	}
	fmt.Fprintf(w, "Retrieved %d chunks for %q:\n\n", len(items), query)
	for _, item := range items {
		fmt.Fprintf(w, "#%d %s\n", item.Rank+1, item.Source)
		fmt.Fprintf(w, "%s\n\n", item.Context)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
