package config

import (
	"fmt"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
	"github.com/foundrybuild/pipeline/internal/stagekit"
	"github.com/foundrybuild/pipeline/internal/validation"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

// BuildPipeline constructs a *pipeline.Pipeline from a validated manifest,
// wiring one concrete stagekit.Stage per manifest entry. logger (which
// may be nil) is handed to every stage kind for its own debug output;
// opts supplies the Pipeline-level collaborators (event publisher,
// filesystem, reaper).
func BuildPipeline(manifest *validation.Manifest, logger ports.Logger, opts ...pipelinepkg.Option) (*pipelinepkg.Pipeline, error) {
	if manifest == nil {
		return nil, stagekiterrors.NewValidationError("manifest", "manifest is nil", nil)
	}

	allOpts := append([]pipelinepkg.Option{pipelinepkg.WithTitle(manifest.Name), pipelinepkg.WithLogger(logger)}, opts...)
	p := pipelinepkg.NewPipeline(manifest.Builddir, manifest.ProjectDirectory, allOpts...)

	for k, v := range manifest.Env {
		p.Setenv(k, v)
	}
	for _, dir := range manifest.PathPrepends {
		p.PrependPath(dir)
	}

	for i, stageCfg := range manifest.Stages {
		stage, err := buildStage(stageCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stages[%d] (%s): %w", i, stageCfg.ID, err)
		}
		if err := p.AddStage(stage); err != nil {
			return nil, fmt.Errorf("stages[%d] (%s): %w", i, stageCfg.ID, err)
		}
	}

	return p, nil
}

func buildStage(cfg validation.Stage, logger ports.Logger) (pipelinepkg.Stage, error) {
	switch cfg.Kind {
	case "command":
		phase := pipelinepkg.PhaseBuild
		if cfg.Phase != "" {
			if parsed, ok := pipelinepkg.ParsePhase(cfg.Phase); ok {
				phase = parsed
			}
		}
		return stagekit.NewCommandStage(phase, stagekit.CommandOptions{
			ID:      cfg.ID,
			Command: cfg.Command.Command,
			Check:   cfg.Command.Check,
			Clean:   cfg.Command.Clean,
			Purge:   cfg.Command.Purge,
			Shell:   cfg.Command.Shell,
			WorkDir: cfg.Command.WorkDir,
			Env:     cfg.Command.Env,
			Logger:  logger,
		}), nil

	case "git-checkout":
		return stagekit.NewGitCheckoutStage(stagekit.GitCheckoutOptions{
			ID:          cfg.ID,
			URL:         cfg.Git.URL,
			Destination: cfg.Git.Destination,
			Branch:      cfg.Git.Branch,
			Depth:       cfg.Git.Depth,
			Logger:      logger,
		}), nil

	case "package":
		return stagekit.NewPackageInstallStage(stagekit.PackageInstallOptions{
			ID:       cfg.ID,
			Manager:  stagekit.PackageManager(cfg.Package.Manager),
			Packages: cfg.Package.Packages,
			WorkDir:  cfg.Package.WorkDir,
			Logger:   logger,
		}), nil

	case "archive":
		return stagekit.NewArchiveExportStage(stagekit.ArchiveExportOptions{
			ID:         cfg.ID,
			SourceDir:  cfg.Archive.SourceDir,
			OutputPath: cfg.Archive.OutputPath,
			Logger:     logger,
		}), nil

	case "purge-path":
		return stagekit.NewPurgePathStage(stagekit.PurgePathOptions{
			ID:     cfg.ID,
			Path:   cfg.Path,
			Logger: logger,
		}), nil

	default:
		return nil, stagekiterrors.NewValidationError("kind", fmt.Sprintf("unknown stage kind %q", cfg.Kind), nil)
	}
}
