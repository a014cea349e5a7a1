package stagekit

import (
	"context"
	"os"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

func removePath(path string) error {
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return nil
}

// PurgePathOptions configures a PurgePathStage.
type PurgePathOptions struct {
	ID     string
	Path   string
	Logger ports.Logger
}

// PurgePathStage removes Path outright on Purge and does nothing on
// Query/Build/Clean. It exists for manifest entries that want a primary
// PhasePurge stage with no corresponding build action — e.g. purging a
// generated cache directory no other stage owns.
type PurgePathStage struct {
	pipelinepkg.BaseStage
	opts PurgePathOptions
}

// NewPurgePathStage constructs a PurgePathStage.
func NewPurgePathStage(opts PurgePathOptions) *PurgePathStage {
	return &PurgePathStage{
		BaseStage: pipelinepkg.NewBaseStage(pipelinepkg.PhasePurge),
		opts:      opts,
	}
}

// Query implements pipeline.Stage. A PurgePathStage has nothing to build,
// so it always reports complete.
func (s *PurgePathStage) Query(ctx context.Context) (bool, error) {
	return true, nil
}

// Build implements pipeline.Stage; a no-op.
func (s *PurgePathStage) Build(ctx context.Context) error {
	return nil
}

// Clean implements pipeline.Stage; a no-op, Path is only removed on Purge.
func (s *PurgePathStage) Clean(ctx context.Context) error {
	return nil
}

// Purge implements pipeline.Stage, removing Path outright.
func (s *PurgePathStage) Purge(ctx context.Context) error {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(ctx, "purging path", "stage", s.opts.ID, "path", s.opts.Path)
	}
	if err := removePath(s.opts.Path); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return nil
}

var _ pipelinepkg.Stage = (*PurgePathStage)(nil)
