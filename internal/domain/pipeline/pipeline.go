package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// Pipeline is an ordered container of Stages plus the collaborators its
// drivers need: a filesystem for the build-directory mkdir, a directory
// reaper for purge, a logger, and an event publisher. Stages may only be
// added or removed while the pipeline has no in-flight Progress.
type Pipeline struct {
	title            string
	builddir         string
	projectDirectory string
	env              map[string]string
	pathPrepends     []string

	fs     ports.FileSystem
	reaper ports.DirectoryReaper
	logger ports.Logger
	events ports.EventPublisher

	mu             sync.Mutex
	stages         []Stage
	current        *Progress
	completedPhase Phase
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithFileSystem sets the FileSystem collaborator used for the build
// directory mkdir performed at the start of every build.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithDirectoryReaper sets the DirectoryReaper collaborator used to remove
// the build directory on purge.
func WithDirectoryReaper(r ports.DirectoryReaper) Option {
	return func(p *Pipeline) { p.reaper = r }
}

// WithLogger sets the Logger collaborator.
func WithLogger(l ports.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithEventPublisher sets the EventPublisher collaborator.
func WithEventPublisher(e ports.EventPublisher) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithTitle sets the pipeline's human-readable title (used by LinkedStage
// to derive its own title when linking to this pipeline).
func WithTitle(title string) Option {
	return func(p *Pipeline) { p.title = title }
}

// NewPipeline constructs an empty Pipeline rooted at builddir, for the
// project at projectDirectory.
func NewPipeline(builddir, projectDirectory string, opts ...Option) *Pipeline {
	p := &Pipeline{
		builddir:         builddir,
		projectDirectory: projectDirectory,
		env:              make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Title returns the pipeline's human-readable title, or "" if none was
// set.
func (p *Pipeline) Title() string { return p.title }

// ProjectDirectory returns the directory of the project this pipeline
// builds.
func (p *Pipeline) ProjectDirectory() string { return p.projectDirectory }

// Builddir returns the pipeline's build directory.
func (p *Pipeline) Builddir() string { return p.builddir }

// Phase returns the highest primary phase for which every stage at or
// before it is known to be completed. It reflects the pipeline's
// completion state, not whatever stage a driver happens to be running at
// this instant; callers that want a fresh answer should call Query first,
// since this value is only updated as stages are queried, built, cleaned,
// or purged.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedPhase
}

// markPhaseComplete records phase as reached, advancing the pipeline's
// completed-phase mark if phase sorts later than what is already recorded.
// Drivers call this once a stage at or before phase is confirmed complete.
func (p *Pipeline) markPhaseComplete(phase Phase) {
	p.mu.Lock()
	if AtLeast(phase, p.completedPhase) {
		p.completedPhase = Mask(phase)
	}
	p.mu.Unlock()
}

// markPhaseIncomplete retracts the completed mark for phase and everything
// after it, regressing the pipeline's completed-phase mark to the phase
// immediately before it. Drivers call this once a stage at phase has been
// cleaned or purged, since anything built on top of it can no longer be
// considered complete.
func (p *Pipeline) markPhaseIncomplete(phase Phase) {
	p.mu.Lock()
	if AtLeast(p.completedPhase, phase) {
		p.completedPhase = phaseBefore(phase)
	}
	p.mu.Unlock()
}

// Setenv records an environment variable on the pipeline, readable back
// through Getenv. The pipeline only stores it: no driver or stage kind in
// this module copies it into a subprocess's environment.
func (p *Pipeline) Setenv(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.env[key] = value
}

// Getenv returns a variable previously set with Setenv, and whether it was
// set.
func (p *Pipeline) Getenv(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.env[key]
	return v, ok
}

// PrependPath records a directory to prepend to PATH, most-recently-added
// first. ContainsProgram consults these directories; no driver or stage
// kind in this module applies them to a subprocess's PATH.
func (p *Pipeline) PrependPath(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pathPrepends = append([]string{dir}, p.pathPrepends...)
}

// PathPrepends returns the directories registered via PrependPath, in the
// order they should be joined onto PATH (most recently added first).
func (p *Pipeline) PathPrepends() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.pathPrepends))
	copy(out, p.pathPrepends)
	return out
}

// AddStage appends stage to the pipeline. It fails with InvalidArgument if
// stage's phase is not well-formed, or with NotInitialized if a Progress
// is currently in flight (stages may only be added while idle).
func (p *Pipeline) AddStage(stage Stage) error {
	if !WellFormed(stage.GetPhase()) {
		return newInvalidArgument("stage phase %s is not well-formed", stage.GetPhase())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return newNotInitialized("cannot add a stage while a progress is in flight")
	}
	p.stages = append(p.stages, stage)
	return nil
}

// Stages returns a copy of the pipeline's stage list, in the order they
// were added.
func (p *Pipeline) Stages() []Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]Stage, len(p.stages))
	copy(stages, p.stages)
	return stages
}

// RemoveStage removes stage from the pipeline, if present. It fails with
// NotInitialized if a Progress is currently in flight.
func (p *Pipeline) RemoveStage(stage Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return newNotInitialized("cannot remove a stage while a progress is in flight")
	}
	for i, s := range p.stages {
		if s == stage {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return nil
		}
	}
	return newNotFound("stage not found in pipeline")
}

// ContainsProgram reports whether name is resolvable on PATH, taking this
// pipeline's PrependPath contributions into account: each prepended
// directory is tried first, in PathPrepends order, before lookPath(name).
func (p *Pipeline) ContainsProgram(name string, lookPath func(string) (string, error)) bool {
	for _, dir := range p.PathPrepends() {
		if _, err := lookPath(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	_, err := lookPath(name)
	return err == nil
}

// Query refreshes every stage's completed cache by calling Query on each,
// without driving any of them, and recomputes Phase()'s completed-phase
// mark from the results. It is used by LinkedStage to report whether the
// linked pipeline has already reached the phase it depends on, and by
// callers that want an up-to-date Phase() without running a build.
func (p *Pipeline) Query(ctx context.Context) error {
	p.mu.Lock()
	stages := make([]Stage, len(p.stages))
	copy(stages, p.stages)
	p.mu.Unlock()

	completedPhase := PhaseNone
	contiguous := true
	for _, s := range stages {
		completed, err := s.Query(ctx)
		if err != nil {
			return err
		}
		if !completed {
			contiguous = false
			continue
		}
		if contiguous {
			completedPhase = Mask(s.GetPhase())
		}
	}

	p.mu.Lock()
	p.completedPhase = completedPhase
	p.mu.Unlock()
	return nil
}

// beginProgress constructs a Progress for targetPhase and records it as
// this pipeline's in-flight run, failing with InvalidArgument if one is
// already running. ptyFD is the caller's descriptor (-1 when no PTY is
// attached); newProgress duplicates it, so the caller keeps its own copy.
func (p *Pipeline) beginProgress(targetPhase Phase, ptyFD int) (*Progress, error) {
	progress, err := newProgress(p, targetPhase, ptyFD)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		progress.closePTY()
		return rejectedProgress(newInvalidArgument("a build, clean, or purge is already in flight on this pipeline")), nil
	}
	p.current = progress
	p.mu.Unlock()

	return progress, nil
}

// rejectedProgress returns a Progress that is already finished with err,
// for callers that must receive a non-nil *Progress even when the
// pipeline refuses to start a new one.
func rejectedProgress(err error) *Progress {
	p := &Progress{done: make(chan struct{}), ptyFD: -1}
	p.assigned = true
	p.err = err
	close(p.done)
	return p
}

func (p *Pipeline) endProgress(progress *Progress) {
	p.mu.Lock()
	if p.current == progress {
		p.current = nil
	}
	p.mu.Unlock()
}

// Build drives every stage whose primary phase is at or before targetPhase
// forward, in pipeline order, skipping any stage whose Query reports it
// already complete. It returns a Progress the caller can Wait on.
func (p *Pipeline) Build(ctx context.Context, targetPhase Phase) (*Progress, error) {
	return p.BuildPTY(ctx, targetPhase, -1)
}

// BuildPTY is Build with an explicit PTY fd (-1 for none), mirroring the
// source's pty_fd parameter on the underlying constructor.
func (p *Pipeline) BuildPTY(ctx context.Context, targetPhase Phase, ptyFD int) (*Progress, error) {
	progress, err := p.beginProgress(targetPhase, ptyFD)
	if err != nil {
		return nil, err
	}
	if progress.assigned {
		return progress, nil
	}
	if err := progress.startBuild(ctx); err != nil {
		return nil, err
	}
	go func() {
		<-progress.done
		p.endProgress(progress)
	}()
	return progress, nil
}

// Clean drives every matched stage's Clean in reverse pipeline order.
func (p *Pipeline) Clean(ctx context.Context, targetPhase Phase) (*Progress, error) {
	progress, err := p.beginProgress(targetPhase, -1)
	if err != nil {
		return nil, err
	}
	if progress.assigned {
		return progress, nil
	}
	if err := progress.startClean(ctx); err != nil {
		return nil, err
	}
	go func() {
		<-progress.done
		p.endProgress(progress)
	}()
	return progress, nil
}

// Purge drives every matched stage's Purge in reverse pipeline order, then
// unconditionally removes the build directory. See the Purge driver's
// doc comment for the (deliberate) lack of a safety guard here.
func (p *Pipeline) Purge(ctx context.Context, targetPhase Phase) (*Progress, error) {
	progress, err := p.beginProgress(targetPhase, -1)
	if err != nil {
		return nil, err
	}
	if progress.assigned {
		return progress, nil
	}
	if err := progress.startPurge(ctx); err != nil {
		return nil, err
	}
	go func() {
		<-progress.done
		p.endProgress(progress)
	}()
	return progress, nil
}

var _ LinkedPipeline = (*Pipeline)(nil)
