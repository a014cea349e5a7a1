package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusOptions struct {
	ManifestPath string
}

func newStatusCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := statusOptions{}

	cmd := &cobra.Command{
		Use:   "status <manifest>",
		Short: "Summarize a manifest's pipeline, querying each stage's completion state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestPath = args[0]
			if err := validateManifestPath(opts.ManifestPath); err != nil {
				return err
			}
			return runStatus(cmd, app, opts)
		},
	}

	return cmd
}

func runStatus(cmd *cobra.Command, app *AppContext, opts statusOptions) error {
	manager, err := app.Manager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := manager.Pipeline()
	stages := p.Stages()

	ctx, _ := app.CommandContext(cmd, "status")
	if err := p.Query(ctx); err != nil {
		return fmt.Errorf("query pipeline: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "title:      %s\n", p.Title())
	fmt.Fprintf(out, "manifest:   %s\n", manager.Path())
	fmt.Fprintf(out, "builddir:   %s\n", p.Builddir())
	fmt.Fprintf(out, "project:    %s\n", p.ProjectDirectory())
	fmt.Fprintf(out, "stages:     %d\n", len(stages))
	fmt.Fprintf(out, "phase:      %s\n", p.Phase())

	for i, stage := range stages {
		fmt.Fprintf(out, "  [%2d] %s\n", i, stage.GetPhase())
	}

	return nil
}
