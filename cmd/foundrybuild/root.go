package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
	json    bool
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "foundrybuild",
		Short:         "foundrybuild drives a Foundry build manifest through its build, clean, and purge phases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug-level logging")
	cmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Accepted but has no effect; every command prints plain text")

	cmd.AddCommand(newBuildCmd(flags, app))
	cmd.AddCommand(newCleanCmd(flags, app))
	cmd.AddCommand(newPurgeCmd(flags, app))
	cmd.AddCommand(newQueryCmd(flags, app))
	cmd.AddCommand(newStatusCmd(flags, app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
