package stagekit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initCheckoutSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("data"), 0o644))
	_, err = wt.Add("file.txt")
	require.NoError(t, err)
	_, err = wt.Commit("c1", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com"},
	})
	require.NoError(t, err)
	return dir
}

func TestGitCheckoutStageQueryReportsIncompleteWhenMissing(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "dest")
	stage := NewGitCheckoutStage(GitCheckoutOptions{ID: "download", URL: "file:///x", Destination: dest})

	done, err := stage.Query(context.Background())
	require.NoError(t, err)
	require.False(t, done)
}

func TestGitCheckoutStageBuildThenQueryCompletes(t *testing.T) {
	t.Parallel()

	source := initCheckoutSource(t)
	dest := filepath.Join(t.TempDir(), "dest")
	stage := NewGitCheckoutStage(GitCheckoutOptions{ID: "download", URL: source, Destination: dest})

	require.NoError(t, stage.Build(context.Background()))

	done, err := stage.Query(context.Background())
	require.NoError(t, err)
	require.True(t, done)

	_, err = os.Stat(filepath.Join(dest, "file.txt"))
	require.NoError(t, err)
}

func TestGitCheckoutStagePurgeRemovesDestination(t *testing.T) {
	t.Parallel()

	source := initCheckoutSource(t)
	dest := filepath.Join(t.TempDir(), "dest")
	stage := NewGitCheckoutStage(GitCheckoutOptions{ID: "download", URL: source, Destination: dest})

	require.NoError(t, stage.Build(context.Background()))
	require.NoError(t, stage.Purge(context.Background()))

	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
}

func TestGitCheckoutStageCleanIsNoop(t *testing.T) {
	t.Parallel()

	source := initCheckoutSource(t)
	dest := filepath.Join(t.TempDir(), "dest")
	stage := NewGitCheckoutStage(GitCheckoutOptions{ID: "download", URL: source, Destination: dest})

	require.NoError(t, stage.Build(context.Background()))
	require.NoError(t, stage.Clean(context.Background()))

	_, err := os.Stat(dest)
	require.NoError(t, err)
}
