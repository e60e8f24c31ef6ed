package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"satyam-ai-go/internal/pipeline"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <chunks.jsonl>",
		Short: "Index pre-chunked statute text",
		Long: `Read one JSON object per line ({"text","source","source_pdf","source_act","chunk_id","page"}),
embed each chunk and write it to the vector index. The index is created if missing.`,
		Example: `  satyamctl seed data/ipc_chunks.jsonl`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			core, err := opts.core(cmd)
			if err != nil {
				return err
			}
			if err := core.Index.EnsureIndex(cmd.Context()); err != nil {
				return err
			}
			n, err := pipeline.NewSeeder(core.Embedder, core.Index).Seed(cmd.Context(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %s.\n", n, core.Index.Name())
			return err
		},
	}
}
