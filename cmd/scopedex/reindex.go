package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	logpkg "github.com/kailas-cloud/scopedex/internal/logger"
)

func reindexCmd(opts *rootOptions) *cobra.Command {
	var all, schema bool
	cmd := &cobra.Command{
		Use:   "reindex [entity...]",
		Short: "Rebuild search indexes from the system of record",
		Long: `Upsert every row from the system of record into the live search index in
batches of sync.reindex_batch_size, then delete indexed documents whose rows are
gone. Reads keep being served from the index while the pass runs.

With --schema the index definition is replaced first. Documents are kept, but
searches may miss some of them until the engine has rescanned its keys.

Examples:
  scopedex reindex properties bookings
  scopedex reindex --all --env prod
  scopedex reindex --schema properties`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("name entity types or pass --all")
			}
			if schema && all {
				return fmt.Errorf("--schema needs explicit entity types")
			}
			return runReindex(cmd, opts, args, schema)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reindex every catalogued entity type concurrently")
	cmd.Flags().BoolVar(&schema, "schema", false, "replace the index definition before reindexing")
	return cmd
}

func runReindex(cmd *cobra.Command, opts *rootOptions, entities []string, schema bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx = logpkg.ContextWithLogger(ctx, a.logger)

	counts := make(map[string]int)
	if len(entities) == 0 {
		counts, err = a.indexer.ReindexAll(ctx)
	} else {
		for _, name := range entities {
			var n int
			if schema {
				n, err = a.indexer.RebuildSchema(ctx, name)
			} else {
				n, err = a.indexer.Reindex(ctx, name)
			}
			if err != nil {
				break
			}
			counts[name] = n
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, counts[name])
	}
	return err
}

func ensureIndexesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create missing search indexes without touching existing ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()
			return a.indexer.EnsureIndexes(logpkg.ContextWithLogger(ctx, a.logger))
		},
	}
}
