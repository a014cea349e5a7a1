// Package stagekit provides concrete pipeline.Stage kinds the manifest
// loader in internal/infrastructure/config instantiates from a build
// manifest: a generic shell command, a git checkout, a package-manager
// install, an archive export, and an outright path removal.
package stagekit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/infrastructure/process"
	"github.com/foundrybuild/pipeline/internal/ports"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

// LauncherFactory constructs a fresh, single-use ports.ProcessLauncher
// whose command line begins with name. Stage kinds take this instead of
// calling os/exec directly so they stay testable against a fake
// launcher.
type LauncherFactory func(name string) ports.ProcessLauncher

// DefaultLauncherFactory wires the infrastructure's os/exec-backed
// Launcher.
func DefaultLauncherFactory(name string) ports.ProcessLauncher {
	return process.NewLauncher(name)
}

// CommandOptions configures a CommandStage.
type CommandOptions struct {
	// ID names the stage for error messages; typically the manifest's
	// stage id.
	ID string
	// Command is the shell command Build runs.
	Command string
	// Check, if set, is a shell command Query runs; exit code 0 means
	// the stage is already complete. An empty Check means Query always
	// reports incomplete.
	Check string
	// Clean, if set, is a shell command Clean runs; an empty Clean is a
	// no-op.
	Clean string
	// Purge, if set, is a shell command Purge runs; an empty Purge is a
	// no-op.
	Purge string
	// Shell overrides the interpreter (defaults via DetermineShell).
	Shell string
	// WorkDir sets the subprocess working directory.
	WorkDir string
	// Env sets additional environment variables for every invocation.
	Env map[string]string
	// Launcher overrides DefaultLauncherFactory, primarily for tests.
	Launcher LauncherFactory
	// Logger receives debug/warn diagnostics; nil disables logging.
	Logger ports.Logger
}

// CommandStage runs an arbitrary shell command for Build, with optional
// companion commands for Query/Clean/Purge. It is grounded on the
// teacher's shell-command plugin, adapted to the pipeline core's
// Stage verbs instead of check/apply/verify.
type CommandStage struct {
	pipelinepkg.BaseStage
	opts CommandOptions
}

// NewCommandStage constructs a CommandStage registered under phase.
func NewCommandStage(phase pipelinepkg.Phase, opts CommandOptions) *CommandStage {
	if opts.Launcher == nil {
		opts.Launcher = DefaultLauncherFactory
	}
	return &CommandStage{
		BaseStage: pipelinepkg.NewBaseStage(phase),
		opts:      opts,
	}
}

// Query implements pipeline.Stage.
func (s *CommandStage) Query(ctx context.Context) (bool, error) {
	if strings.TrimSpace(s.opts.Check) == "" {
		return false, nil
	}
	_, err := s.run(ctx, s.opts.Check)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return true, nil
}

// Build implements pipeline.Stage. On success, a stage with a Check
// command records SetCached(true). Query does not read that cache: it
// re-runs Check on every call.
func (s *CommandStage) Build(ctx context.Context) error {
	if strings.TrimSpace(s.opts.Command) == "" {
		return stagekiterrors.NewValidationError(s.opts.ID, "command is required", nil)
	}
	if _, err := s.run(ctx, s.opts.Command); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	if strings.TrimSpace(s.opts.Check) != "" {
		s.SetCached(true)
	}
	return nil
}

// Clean implements pipeline.Stage. A stage with no Clean command treats
// Clean as a no-op, matching the teacher's "safe to call even if Build
// never ran" contract.
func (s *CommandStage) Clean(ctx context.Context) error {
	if strings.TrimSpace(s.opts.Clean) == "" {
		return nil
	}
	if _, err := s.run(ctx, s.opts.Clean); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return nil
}

// Purge implements pipeline.Stage.
func (s *CommandStage) Purge(ctx context.Context) error {
	if strings.TrimSpace(s.opts.Purge) == "" {
		return nil
	}
	if _, err := s.run(ctx, s.opts.Purge); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return nil
}

// run spawns shell -c command via the configured launcher and returns its
// combined stdout/stderr alongside any error, with output folded into the
// error message when the command failed.
func (s *CommandStage) run(ctx context.Context, command string) (string, error) {
	shell, shellArgs, err := process.DetermineShell(s.opts.Shell)
	if err != nil {
		return "", err
	}

	launcher := s.opts.Launcher(shell)
	for _, arg := range shellArgs {
		launcher.Push(arg)
	}
	launcher.Push(command)

	if s.opts.WorkDir != "" {
		launcher.SetCwd(s.opts.WorkDir)
	}
	for k, v := range s.opts.Env {
		launcher.Setenv(k, v)
	}

	if s.opts.Logger != nil {
		s.opts.Logger.Debug(ctx, "running command", "stage", s.opts.ID, "command", command)
	}

	sub, err := launcher.Spawn(ctx)
	if err != nil {
		return "", err
	}

	waitErr := sub.Wait(ctx)
	output := sub.CombinedOutput()
	if waitErr != nil && output != "" {
		waitErr = fmt.Errorf("%w: %s", waitErr, output)
	}
	return output, waitErr
}

var _ pipelinepkg.Stage = (*CommandStage)(nil)
