package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundrybuild/pipeline/internal/infrastructure/logging"
	"github.com/foundrybuild/pipeline/internal/ports"
)

type recordingPublisher struct {
	published []ports.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

func writeManifestFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestNewManagerLoadsInitialPipeline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifestFile(t, dir, "foundry.yaml", validManifestYAML)

	m, err := NewManager(path, logging.NewNoOpLogger(), nil)
	require.NoError(t, err)
	require.Equal(t, "demo", m.Pipeline().Title())
	require.Equal(t, path, m.Path())
}

func TestNewManagerFailsOnInvalidManifest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifestFile(t, dir, "foundry.yaml", "not: [valid")

	_, err := NewManager(path, logging.NewNoOpLogger(), nil)
	require.Error(t, err)
}

func TestManagerReloadSwapsPipelineAndPublishesEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifestFile(t, dir, "foundry.yaml", validManifestYAML)

	pub := &recordingPublisher{}
	m, err := NewManager(path, logging.NewNoOpLogger(), pub)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
version: "2.0"
name: demo-reloaded
builddir: /tmp/build
project_directory: /tmp/src
stages:
  - id: build
    kind: command
    command:
      command: make
`), 0o644))

	require.NoError(t, m.Reload(context.Background()))
	require.Equal(t, "demo-reloaded", m.Pipeline().Title())
	require.Len(t, pub.published, 1)
	require.Equal(t, ports.EventPipelineInvalidated, pub.published[0].EventType())
}

func TestManagerReloadKeepsPreviousPipelineOnFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeManifestFile(t, dir, "foundry.yaml", validManifestYAML)

	m, err := NewManager(path, logging.NewNoOpLogger(), nil)
	require.NoError(t, err)
	original := m.Pipeline()

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	require.Error(t, m.Reload(context.Background()))
	require.Same(t, original, m.Pipeline())
}
