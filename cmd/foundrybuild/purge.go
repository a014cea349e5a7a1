package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
)

type purgeOptions struct {
	ManifestPath string
	Phase        string
	Force        bool
}

func newPurgeCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := purgeOptions{}

	cmd := &cobra.Command{
		Use:   "purge <manifest>",
		Short: "Reverse-drive Purge on every stage, then remove the build directory",
		Long: `Purge removes every stage's build output at or before the target phase
and then unconditionally removes the pipeline's build directory. If a
stage's Purge fails, the run stops there and the build directory is not
removed. There is no dry-run for this command; use --force to acknowledge
the destructive nature of the operation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestPath = args[0]
			if err := validateManifestPath(opts.ManifestPath); err != nil {
				return err
			}
			if !opts.Force {
				return fmt.Errorf("purge removes the build directory unconditionally; pass --force to confirm")
			}
			return runPurge(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Phase, "phase", "final", "Target phase to purge through")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Confirm the destructive removal of the build directory")

	return cmd
}

func runPurge(cmd *cobra.Command, app *AppContext, opts purgeOptions) error {
	ctx, logger := app.CommandContext(cmd, "purge")

	targetPhase, ok := pipelinepkg.ParsePhase(opts.Phase)
	if !ok {
		return fmt.Errorf("unknown phase %q", opts.Phase)
	}

	manager, err := app.Manager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := manager.Pipeline()

	progress, err := p.Purge(ctx, targetPhase)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "purge failed to start", "manifest", opts.ManifestPath, "error", err)
		}
		return err
	}

	if err := progress.Wait(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "purge failed: %v\n", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "purge of %s complete through phase %s\n", p.Title(), opts.Phase)
	return nil
}
