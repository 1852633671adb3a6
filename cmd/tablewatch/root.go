package main

import (
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tablewatch",
		Short:         "Poll restaurant reservation availability and notify on openings",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare invocation runs the watcher.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./config.yaml", "path to config (.json, .jsonc, .hujson, .yaml)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newOnceCmd(opts))
	root.AddCommand(newVenuesCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}
