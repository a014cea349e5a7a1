package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

type queryOptions struct {
	ManifestPath string
}

func newQueryCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <manifest>",
		Short: "Report whether every stage is already complete, without driving any of them",
		Long: `Query calls Query on every stage in manifest order without invoking Build,
Clean, or Purge. Exit code 0 means every stage reported complete; exit
code 1 means at least one stage needs work.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestPath = args[0]
			if err := validateManifestPath(opts.ManifestPath); err != nil {
				return err
			}
			return runQuery(cmd, app, opts)
		},
	}

	return cmd
}

func runQuery(cmd *cobra.Command, app *AppContext, opts queryOptions) error {
	ctx, _ := app.CommandContext(cmd, "query")

	manager, err := app.Manager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := manager.Pipeline()

	incomplete := 0
	for i, stage := range p.Stages() {
		complete, err := stage.Query(ctx)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "[%2d] %-14s error: %v\n", i, stage.GetPhase(), err)
			incomplete++
			continue
		}
		status := "complete"
		if !complete {
			status = "incomplete"
			incomplete++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%2d] %-14s %s\n", i, stage.GetPhase(), status)
	}

	if incomplete > 0 {
		exitFunc(1)
	}
	return nil
}
