package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "presence",
		Short: "Group attendance tracker",
		Long: `presence records check ins, check outs and breaks for chat group members
and builds daily, weekly and monthly attendance reports.

Configuration is read from an optional YAML file and PRESENCE_* environment
variables, for example PRESENCE_DB_PATH or PRESENCE_CLOCK_TIMEZONE.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $PRESENCE_CONFIG_PATH)")

	root.AddCommand(
		newServeCmd(opts),
		newSignalCmd(opts),
		newReportCmd(opts),
		newSessionsCmd(opts),
		newWatchCmd(opts),
	)
	return root
}
