package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// LinkedPipeline is the narrow slice of *Pipeline a LinkedStage depends on.
// It is satisfied by *Pipeline itself; the interface exists so this file
// can be read and tested without importing the concrete Pipeline type's
// full surface.
type LinkedPipeline interface {
	Query(ctx context.Context) error
	Build(ctx context.Context, targetPhase Phase) (*Progress, error)
	Clean(ctx context.Context, targetPhase Phase) (*Progress, error)
	Purge(ctx context.Context, targetPhase Phase) (*Progress, error)
	Phase() Phase
	Title() string
	ProjectDirectory() string
}

// LinkedStage is a Stage that, when driven, runs another Pipeline through
// to a given phase before letting its own pipeline continue. It is how one
// pipeline composes another (e.g. a workspace building a vendored
// dependency's own pipeline before continuing its own BUILD phase).
type LinkedStage struct {
	BaseStage

	linked      LinkedPipeline
	linkedPhase Phase
	title       string
}

// NewLinkedStage creates a LinkedStage that runs linked through to INSTALL
// when our pipeline reaches phase. This mirrors the convenience
// constructor of the original implementation, which defaults the linked
// phase to INSTALL.
func NewLinkedStage(linked LinkedPipeline, phase Phase) (*LinkedStage, error) {
	return NewLinkedStageFull(linked, phase, PhaseInstall)
}

// NewLinkedStageFull creates a LinkedStage that runs linked through to
// linkedPhase when our pipeline reaches phase.
func NewLinkedStageFull(linked LinkedPipeline, phase, linkedPhase Phase) (*LinkedStage, error) {
	if linked == nil {
		return nil, newInvalidArgument("linked pipeline must not be nil")
	}
	if phase == PhaseNone {
		return nil, newInvalidArgument("phase must not be zero")
	}
	if linkedPhase == PhaseNone {
		return nil, newInvalidArgument("linked phase must not be zero")
	}
	return &LinkedStage{
		BaseStage:   NewBaseStage(phase),
		linked:      linked,
		linkedPhase: linkedPhase,
		title:       deriveLinkedTitle(linked),
	}, nil
}

// deriveLinkedTitle falls back from the linked pipeline's own title to its
// project directory's basename when no title is set, matching the
// constructor behavior of the original implementation.
func deriveLinkedTitle(linked LinkedPipeline) string {
	if title := linked.Title(); title != "" {
		return fmt.Sprintf("Build %s", title)
	}
	base := filepath.Base(linked.ProjectDirectory())
	base = strings.ToValidUTF8(base, "")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "Build linked project"
	}
	return fmt.Sprintf("Build %s", base)
}

// Title returns the derived "Build <name>" title for this stage.
func (s *LinkedStage) Title() string {
	return s.title
}

// Query reports the linked pipeline as completed once its own phase has
// advanced at least as far as the linked phase we depend on.
func (s *LinkedStage) Query(ctx context.Context) (bool, error) {
	if err := s.linked.Query(ctx); err != nil {
		return false, err
	}
	completed := AtLeast(s.linked.Phase(), s.linkedPhase)
	s.SetCached(completed)
	return completed, nil
}

// Build drives the linked pipeline forward to the linked phase and waits
// for it to finish.
func (s *LinkedStage) Build(ctx context.Context) error {
	progress, err := s.linked.Build(ctx, s.linkedPhase)
	if err != nil {
		return err
	}
	return progress.Wait(ctx)
}

// Clean drives the linked pipeline's clean driver down to the linked phase
// and waits for it to finish.
func (s *LinkedStage) Clean(ctx context.Context) error {
	progress, err := s.linked.Clean(ctx, s.linkedPhase)
	if err != nil {
		return err
	}
	return progress.Wait(ctx)
}

// Purge drives the linked pipeline's purge driver down to the linked phase
// and waits for it to finish.
func (s *LinkedStage) Purge(ctx context.Context) error {
	progress, err := s.linked.Purge(ctx, s.linkedPhase)
	if err != nil {
		return err
	}
	return progress.Wait(ctx)
}

var _ Stage = (*LinkedStage)(nil)
