// Package cmd defines the hostpulse command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/hostpulse/internal/app"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "hostpulse",
		Short:         "Host resource monitoring with threshold alerts",
		Long:          `hostpulse samples CPU, memory, disk and load on local and SSH hosts, stores the history and notifies by email, Slack or Discord when thresholds are crossed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start polling hosts and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cfgFile)
		},
	}

	collect := &cobra.Command{
		Use:   "collect <host>",
		Short: "Take one sample from a host and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Collect(cmd.Context(), cfgFile, args[0], cmd.OutOrStdout())
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app.PrintVersion(cmd.OutOrStdout())
		},
	}

	root.AddCommand(serve, collect, version, newConfigCommand(&cfgFile))
	return root
}
