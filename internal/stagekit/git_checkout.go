package stagekit

import (
	"context"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/infrastructure/vcs"
	"github.com/foundrybuild/pipeline/internal/ports"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

// GitCheckoutOptions configures a GitCheckoutStage.
type GitCheckoutOptions struct {
	ID          string
	URL         string
	Destination string
	Branch      string
	Depth       int
	Logger      ports.Logger
}

// GitCheckoutStage clones (or re-clones, on origin mismatch) a repository
// into a destination directory. It is registered under PhaseDownloads;
// Clean is a no-op (the checkout is a source a subsequent Build needs)
// and Purge removes the destination outright.
type GitCheckoutStage struct {
	pipelinepkg.BaseStage
	opts    GitCheckoutOptions
	fetcher *vcs.Fetcher
}

// NewGitCheckoutStage constructs a GitCheckoutStage.
func NewGitCheckoutStage(opts GitCheckoutOptions) *GitCheckoutStage {
	return &GitCheckoutStage{
		BaseStage: pipelinepkg.NewBaseStage(pipelinepkg.PhaseDownloads),
		opts:      opts,
		fetcher:   vcs.NewFetcher(),
	}
}

func (s *GitCheckoutStage) source() vcs.Source {
	return vcs.Source{
		URL:         s.opts.URL,
		Destination: s.opts.Destination,
		Branch:      s.opts.Branch,
		Depth:       s.opts.Depth,
	}
}

// Query implements pipeline.Stage.
func (s *GitCheckoutStage) Query(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	needsFetch, err := s.fetcher.NeedsFetch(s.source())
	if err != nil {
		return false, stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return !needsFetch, nil
}

// Build implements pipeline.Stage.
func (s *GitCheckoutStage) Build(ctx context.Context) error {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(ctx, "checking out repository", "stage", s.opts.ID, "url", s.opts.URL, "destination", s.opts.Destination)
	}
	if err := s.fetcher.Fetch(ctx, s.source()); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return nil
}

// Clean implements pipeline.Stage. A checked-out source tree is what a
// subsequent Build needs to re-download from; Clean leaves it alone.
func (s *GitCheckoutStage) Clean(ctx context.Context) error {
	return nil
}

// Purge implements pipeline.Stage, removing the checked-out tree.
func (s *GitCheckoutStage) Purge(ctx context.Context) error {
	return removePath(s.opts.Destination)
}

var _ pipelinepkg.Stage = (*GitCheckoutStage)(nil)
