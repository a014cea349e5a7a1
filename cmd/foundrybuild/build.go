package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/infrastructure/pty"
)

type buildOptions struct {
	ManifestPath string
	Phase        string
}

func newBuildCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := buildOptions{}

	cmd := &cobra.Command{
		Use:   "build <manifest>",
		Short: "Drive every stage up to and including the target phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestPath = args[0]
			if err := validateManifestPath(opts.ManifestPath); err != nil {
				return err
			}
			return runBuild(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Phase, "phase", "final", "Target phase to build through (downloads, dependencies, configure, build, install, export, final, ...)")

	return cmd
}

func runBuild(cmd *cobra.Command, app *AppContext, opts buildOptions) error {
	ctx, logger := app.CommandContext(cmd, "build")

	targetPhase, ok := pipelinepkg.ParsePhase(opts.Phase)
	if !ok {
		return fmt.Errorf("unknown phase %q", opts.Phase)
	}

	manager, err := app.Manager(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := manager.Pipeline()

	ptyFD := -1
	if fd := int(os.Stdout.Fd()); pty.IsTerminal(fd) {
		ptyFD = fd
	}

	progress, err := p.BuildPTY(ctx, targetPhase, ptyFD)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "build failed to start", "manifest", opts.ManifestPath, "error", err)
		}
		return err
	}
	defer progress.Close()

	if err := progress.Wait(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "build failed: %v\n", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "build of %s complete through phase %s\n", p.Title(), opts.Phase)
	return nil
}
