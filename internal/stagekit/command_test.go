package stagekit

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
)

type fakeSubprocess struct {
	waitErr error
	output  string
}

func (f *fakeSubprocess) Wait(ctx context.Context) error { return f.waitErr }
func (f *fakeSubprocess) Kill() error                    { return nil }
func (f *fakeSubprocess) CombinedOutput() string         { return f.output }

type fakeLauncher struct {
	pushed  []string
	cwd     string
	env     map[string]string
	sub     *fakeSubprocess
	spawnFn func() (ports.Subprocess, error)
}

func newFakeLauncher(sub *fakeSubprocess) *fakeLauncher {
	return &fakeLauncher{env: make(map[string]string), sub: sub}
}

func (f *fakeLauncher) Push(arg string)          { f.pushed = append(f.pushed, arg) }
func (f *fakeLauncher) SetCwd(dir string)        { f.cwd = dir }
func (f *fakeLauncher) Setenv(key, value string) { f.env[key] = value }
func (f *fakeLauncher) PrependPath(dir string)   {}
func (f *fakeLauncher) TakeFD(fd, targetFD int)  {}
func (f *fakeLauncher) Spawn(ctx context.Context) (ports.Subprocess, error) {
	if f.spawnFn != nil {
		return f.spawnFn()
	}
	return f.sub, nil
}

func TestCommandStageBuildSucceeds(t *testing.T) {
	t.Parallel()

	sub := &fakeSubprocess{}
	var captured *fakeLauncher
	stage := NewCommandStage(pipelinepkg.PhaseBuild, CommandOptions{
		ID:      "build",
		Command: "make",
		Launcher: func(name string) ports.ProcessLauncher {
			captured = newFakeLauncher(sub)
			return captured
		},
	})

	require.NoError(t, stage.Build(context.Background()))
	require.Contains(t, captured.pushed, "make")
}

func TestCommandStageBuildFailureIncludesOutput(t *testing.T) {
	t.Parallel()

	sub := &fakeSubprocess{waitErr: &exec.ExitError{}, output: "compile failed"}
	stage := NewCommandStage(pipelinepkg.PhaseBuild, CommandOptions{
		ID:      "build",
		Command: "make",
		Launcher: func(name string) ports.ProcessLauncher {
			return newFakeLauncher(sub)
		},
	})

	err := stage.Build(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "compile failed")
}

func TestCommandStageQueryNoCheckReportsIncomplete(t *testing.T) {
	t.Parallel()

	stage := NewCommandStage(pipelinepkg.PhaseConfigure, CommandOptions{ID: "configure"})
	done, err := stage.Query(context.Background())
	require.NoError(t, err)
	require.False(t, done)
}

func TestCommandStageQuerySucceedsWhenCheckExitsZero(t *testing.T) {
	t.Parallel()

	sub := &fakeSubprocess{}
	stage := NewCommandStage(pipelinepkg.PhaseConfigure, CommandOptions{
		ID:    "configure",
		Check: "test -f Makefile",
		Launcher: func(name string) ports.ProcessLauncher {
			return newFakeLauncher(sub)
		},
	})

	done, err := stage.Query(context.Background())
	require.NoError(t, err)
	require.True(t, done)
}

func TestCommandStageQueryExitErrorMeansIncomplete(t *testing.T) {
	t.Parallel()

	sub := &fakeSubprocess{waitErr: &exec.ExitError{}}
	stage := NewCommandStage(pipelinepkg.PhaseConfigure, CommandOptions{
		ID:    "configure",
		Check: "test -f Makefile",
		Launcher: func(name string) ports.ProcessLauncher {
			return newFakeLauncher(sub)
		},
	})

	done, err := stage.Query(context.Background())
	require.NoError(t, err)
	require.False(t, done)
}

func TestCommandStageQuerySpawnErrorIsSurfaced(t *testing.T) {
	t.Parallel()

	stage := NewCommandStage(pipelinepkg.PhaseConfigure, CommandOptions{
		ID:    "configure",
		Check: "test -f Makefile",
		Launcher: func(name string) ports.ProcessLauncher {
			l := newFakeLauncher(nil)
			l.spawnFn = func() (ports.Subprocess, error) { return nil, errors.New("spawn failed") }
			return l
		},
	})

	_, err := stage.Query(context.Background())
	require.Error(t, err)
}

func TestCommandStageCleanNoopWithoutCleanCommand(t *testing.T) {
	t.Parallel()

	stage := NewCommandStage(pipelinepkg.PhaseBuild, CommandOptions{ID: "build"})
	require.NoError(t, stage.Clean(context.Background()))
	require.NoError(t, stage.Purge(context.Background()))
}

func TestCommandStageBuildRequiresCommand(t *testing.T) {
	t.Parallel()

	stage := NewCommandStage(pipelinepkg.PhaseBuild, CommandOptions{ID: "build"})
	require.Error(t, stage.Build(context.Background()))
}
