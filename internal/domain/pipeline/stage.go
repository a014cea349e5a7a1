package pipeline

import (
	"context"
	"sync"
)

// Stage is the unit of work a Pipeline sequences. A Stage is tagged with
// exactly one primary Phase (GetPhase) plus any modifier bits, and
// implements the four verbs a driver invokes on it: Query, Build, Clean,
// Purge. Implementations should be safe to call from the single goroutine
// a Pipeline's driver runs on; Stage does not need to be safe for
// concurrent use by multiple drivers, since a Pipeline never runs more
// than one driver at a time.
type Stage interface {
	// GetPhase returns the phase (primary bit plus modifiers) this stage
	// is registered under.
	GetPhase() Phase

	// Query reports whether the stage's output is already up to date. A
	// driver skips Build for a stage whose Query returns true. Query
	// must not mutate filesystem state.
	Query(ctx context.Context) (completed bool, err error)

	// Build performs the stage's forward action (download, configure,
	// compile, install, ...). It should respect ctx cancellation.
	Build(ctx context.Context) error

	// Clean reverses whatever Build produced, without removing sources
	// that a subsequent Build would need to re-download. It should be
	// safe to call even if Build was never run.
	Clean(ctx context.Context) error

	// Purge removes everything Build and Clean leave behind, including
	// anything Clean deliberately preserves. It should be safe to call
	// even if Build was never run.
	Purge(ctx context.Context) error
}

// BuildFlagsProvider is an optional capability a Stage may implement to
// contribute compiler/linker flags to sibling stages (e.g. a dependency
// stage exposing pkg-config flags to a configure stage). A Stage that does
// not implement this interface is treated as contributing no flags; callers
// should type-assert rather than require this interface on Stage itself.
type BuildFlagsProvider interface {
	// FindBuildFlags returns the flags this stage contributes for the
	// named language, or a NotSupported DomainError if the stage has
	// none for that language.
	FindBuildFlags(ctx context.Context, language string) ([]string, error)
}

// BaseStage is an embeddable helper that gives a concrete Stage a
// completed-result cache (SetCached, Cached, Invalidate). Drivers always
// call Query and never read this cache themselves; whether a cached result
// is reused is up to the embedding stage kind's own Query, and it lasts
// until Invalidate is called. Embedding this is optional; it only saves
// boilerplate for stage kinds whose Query is expensive.
type BaseStage struct {
	phase Phase

	mu        sync.Mutex
	cached    bool
	haveCache bool
}

// NewBaseStage constructs a BaseStage tagged with phase. phase must be
// well-formed (exactly one primary bit); callers that violate this will
// have the ill-formed value surface as an InvalidArgument DomainError when
// the stage is passed to Pipeline.AddStage.
func NewBaseStage(phase Phase) BaseStage {
	return BaseStage{phase: phase}
}

// GetPhase implements Stage.
func (b *BaseStage) GetPhase() Phase {
	return b.phase
}

// Cached returns the last cached Query result and whether one exists.
func (b *BaseStage) Cached() (completed bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cached, b.haveCache
}

// SetCached records a Query result for reuse until Invalidate is called.
func (b *BaseStage) SetCached(completed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cached = completed
	b.haveCache = true
}

// Invalidate clears any cached Query result, forcing the next Query call
// to recompute it.
func (b *BaseStage) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.haveCache = false
}
