package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"satyam-ai-go/internal/app"
	"satyam-ai-go/pkg/cache"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the response cache",
	}
	cmd.AddCommand(newCacheGetCmd(opts))
	cmd.AddCommand(newCacheListCmd(opts))
	return cmd
}

func (o *rootOptions) responseCache(cmd *cobra.Command) (*cache.ResponseCache, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	backends, err := app.CacheBackends(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewStore(cfg.Cache, backends)
	if err != nil {
		return nil, err
	}
	return cache.New(store, cache.PoliciesFromConfig(cfg.Cache)...), nil
}

func newCacheGetCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "get <query>",
		Short:   "Print the cached answer for a query",
		Example: `  satyamctl cache get "Section 302 IPC"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responses, err := opts.responseCache(cmd)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			result, ok := responses.Get(cmd.Context(), query)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No cached answer for %q.\n", cache.NormalizeKey(query))
				return nil
			}
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

func newCacheListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached query keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			responses, err := opts.responseCache(cmd)
			if err != nil {
				return err
			}
			entries := responses.Entries(cmd.Context())
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cached answers (%d):\n", len(keys))
			for _, k := range keys {
				fmt.Fprintf(out, "  %s  [confidence %d, %d sources]\n", k, entries[k].Confidence, len(entries[k].Sources))
			}
			return nil
		},
	}
}
