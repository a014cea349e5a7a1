package config

import (
	"context"
	"sync"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
)

// BuildManager owns the single *pipeline.Pipeline a CLI invocation drives,
// reloadable from its backing manifest. It is defined here rather than in
// internal/ports because a port exposing *pipeline.Pipeline would create
// an import cycle: internal/ports is imported BY internal/domain/pipeline,
// so ports cannot in turn import that package. Infrastructure code has no
// such restriction.
type BuildManager interface {
	// Pipeline returns the currently loaded Pipeline.
	Pipeline() *pipelinepkg.Pipeline
	// Reload re-parses and re-validates the manifest at the manager's
	// path, replacing the current Pipeline on success. On failure the
	// previous Pipeline remains current. Either way, a successful swap
	// publishes ports.EventPipelineInvalidated.
	Reload(ctx context.Context) error
	// Path returns the manifest path this manager was constructed with.
	Path() string
}

// Manager is the default BuildManager, backed by a YAML manifest file on
// disk.
type Manager struct {
	path   string
	logger ports.Logger
	events ports.EventPublisher
	opts   []pipelinepkg.Option

	mu       sync.RWMutex
	pipeline *pipelinepkg.Pipeline
}

// NewManager loads the manifest at path and constructs its initial
// Pipeline. logger and events may be nil.
func NewManager(path string, logger ports.Logger, events ports.EventPublisher, opts ...pipelinepkg.Option) (*Manager, error) {
	m := &Manager{
		path:   path,
		logger: logger,
		events: events,
		opts:   opts,
	}

	p, err := m.load()
	if err != nil {
		return nil, err
	}
	m.pipeline = p
	return m, nil
}

func (m *Manager) load() (*pipelinepkg.Pipeline, error) {
	manifest, err := ParseManifest(m.path)
	if err != nil {
		return nil, err
	}
	return BuildPipeline(manifest, m.logger, m.opts...)
}

// Pipeline implements BuildManager.
func (m *Manager) Pipeline() *pipelinepkg.Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pipeline
}

// Path implements BuildManager.
func (m *Manager) Path() string { return m.path }

// Reload implements BuildManager.
func (m *Manager) Reload(ctx context.Context) error {
	next, err := m.load()
	if err != nil {
		if m.logger != nil {
			m.logger.Warn(ctx, "manifest reload failed, keeping previous pipeline", "path", m.path, "error", err)
		}
		return err
	}

	m.mu.Lock()
	previous := m.pipeline
	m.pipeline = next
	m.mu.Unlock()

	if m.events != nil {
		_ = m.events.Publish(ctx, pipelineInvalidatedEvent{path: m.path})
	}
	if m.logger != nil {
		m.logger.Info(ctx, "pipeline reloaded", "path", m.path, "previous_title", titleOf(previous), "title", titleOf(next))
	}
	return nil
}

func titleOf(p *pipelinepkg.Pipeline) string {
	if p == nil {
		return ""
	}
	return p.Title()
}

type pipelineInvalidatedEvent struct {
	path string
}

func (e pipelineInvalidatedEvent) EventType() string { return ports.EventPipelineInvalidated }
func (e pipelineInvalidatedEvent) Payload() interface{} {
	return map[string]interface{}{"path": e.path}
}

var _ BuildManager = (*Manager)(nil)
