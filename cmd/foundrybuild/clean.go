package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
)

type cleanOptions struct {
	ManifestPath string
	Phase        string
}

func newCleanCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean <manifest>",
		Short: "Reverse-drive Clean on every stage at or before the target phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestPath = args[0]
			if err := validateManifestPath(opts.ManifestPath); err != nil {
				return err
			}
			return runClean(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Phase, "phase", "final", "Target phase to clean through")

	return cmd
}

func runClean(cmd *cobra.Command, app *AppContext, opts cleanOptions) error {
	ctx, logger := app.CommandContext(cmd, "clean")

	targetPhase, ok := pipelinepkg.ParsePhase(opts.Phase)
	if !ok {
		return fmt.Errorf("unknown phase %q", opts.Phase)
	}

	manager, err := app.Manager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := manager.Pipeline()

	progress, err := p.Clean(ctx, targetPhase)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "clean failed to start", "manifest", opts.ManifestPath, "error", err)
		}
		return err
	}

	if err := progress.Wait(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "clean failed: %v\n", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "clean of %s complete through phase %s\n", p.Title(), opts.Phase)
	return nil
}
