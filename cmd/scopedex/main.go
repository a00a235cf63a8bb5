package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/scopedex/internal/version"
)

type rootOptions struct {
	env        string
	configPath string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "scopedex",
		Short:         "Search-backed list/retrieve with system-of-record fallback and per-user tenant scoping",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.env, "env", "", "environment name, selects config/<env>.yaml (default $ENV or local)")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "explicit config file, overrides --env lookup")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(reindexCmd(opts))
	rootCmd.AddCommand(ensureIndexesCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
