package stagekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundrybuild/pipeline/internal/ports"
)

func TestPackageInstallStageRendersAptCommand(t *testing.T) {
	t.Parallel()

	sub := &fakeSubprocess{}
	var captured *fakeLauncher
	stage := NewPackageInstallStage(PackageInstallOptions{
		ID:       "deps",
		Manager:  PackageManagerAPT,
		Packages: []string{"git", "make"},
		Launcher: func(name string) ports.ProcessLauncher {
			captured = newFakeLauncher(sub)
			return captured
		},
	})

	require.NoError(t, stage.Build(context.Background()))
	require.Contains(t, captured.pushed, "apt-get install -y git make")
}

func TestPackageInstallStageUnknownManagerProducesEmptyCommand(t *testing.T) {
	t.Parallel()

	stage := NewPackageInstallStage(PackageInstallOptions{ID: "deps", Manager: "unknown", Packages: []string{"x"}})
	require.Error(t, stage.Build(context.Background()))
}
