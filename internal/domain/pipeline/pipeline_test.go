package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundrybuild/pipeline/internal/ports"
)

type stageCall struct {
	verb string
}

type fakeStage struct {
	phase Phase
	name  string
	log   *sharedLog

	// started is closed the moment Build is invoked, letting a test
	// synchronize with the driver goroutine instead of racing it.
	started chan struct{}
	// release, if set, blocks Build until the test closes it.
	release chan struct{}

	mu        sync.Mutex
	calls     []stageCall
	completed bool
	queryErr  error
	buildErr  error
	cleanErr  error
	purgeErr  error
}

// sharedLog records calls across multiple fakeStage instances so tests
// can assert the order a driver invokes several stages in.
type sharedLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *sharedLog) record(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *sharedLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func newFakeStage(phase Phase) *fakeStage {
	return &fakeStage{phase: phase}
}

func newNamedFakeStage(phase Phase, name string, log *sharedLog) *fakeStage {
	return &fakeStage{phase: phase, name: name, log: log}
}

func (s *fakeStage) GetPhase() Phase { return s.phase }

func (s *fakeStage) record(verb string) {
	s.mu.Lock()
	s.calls = append(s.calls, stageCall{verb: verb})
	s.mu.Unlock()
	if s.log != nil {
		s.log.record(s.name + ":" + verb)
	}
}

func (s *fakeStage) recordedVerbs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.verb
	}
	return out
}

func (s *fakeStage) Query(ctx context.Context) (bool, error) {
	s.record("query")
	return s.completed, s.queryErr
}

func (s *fakeStage) Build(ctx context.Context) error {
	s.record("build")
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	return s.buildErr
}

func (s *fakeStage) Clean(ctx context.Context) error {
	s.record("clean")
	return s.cleanErr
}

func (s *fakeStage) Purge(ctx context.Context) error {
	s.record("purge")
	return s.purgeErr
}

var _ Stage = (*fakeStage)(nil)

type fakeFileSystem struct {
	mkdirCalls int
	mkdirErr   error
}

func (f *fakeFileSystem) MkdirWithParents(ctx context.Context, dir string, perm uint32) error {
	f.mkdirCalls++
	return f.mkdirErr
}

func (f *fakeFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	return false, nil
}

type fakeReaper struct {
	mu         sync.Mutex
	dirs       []string
	files      []string
	executed   bool
	executeErr error
}

func (r *fakeReaper) AddDirectory(path string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, path)
}

func (r *fakeReaper) AddFile(path string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, path)
}

func (r *fakeReaper) Execute(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = true
	return r.executeErr
}

type recordingEventPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
}

func (p *recordingEventPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingEventPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return noopTestSubscription{}, nil
}

func (p *recordingEventPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type noopTestSubscription struct{}

func (noopTestSubscription) Unsubscribe() {}

func waitProgress(t *testing.T, progress *Progress) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return progress.Wait(ctx)
}

func TestPipelineBuildSkipsAlreadyCompletedStages(t *testing.T) {
	t.Parallel()

	configure := newFakeStage(PhaseConfigure)
	build := newFakeStage(PhaseBuild)
	build.completed = true

	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(&fakeFileSystem{}))
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	require.Equal(t, []string{"query", "build"}, configure.recordedVerbs())
	require.Equal(t, []string{"query"}, build.recordedVerbs())
}

func TestPipelineBuildPropagatesMkdirFailure(t *testing.T) {
	t.Parallel()

	build := newFakeStage(PhaseBuild)
	fs := &fakeFileSystem{mkdirErr: errors.New("disk full")}

	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(fs))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.True(t, IsCode(waitProgress(t, progress), ErrIO))
	require.Equal(t, 1, fs.mkdirCalls)
	require.Empty(t, build.recordedVerbs())
}

func TestPipelineBuildAbortsOnFirstStageFailure(t *testing.T) {
	t.Parallel()

	configure := newFakeStage(PhaseConfigure)
	configure.buildErr = errors.New("configure failed")
	build := newFakeStage(PhaseBuild)

	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(&fakeFileSystem{}))
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.ErrorIs(t, waitProgress(t, progress), configure.buildErr)

	require.Equal(t, []string{"query", "build"}, configure.recordedVerbs())
	require.Empty(t, build.recordedVerbs())
}

func TestPipelineCleanRunsStagesInReverseOrder(t *testing.T) {
	t.Parallel()

	log := &sharedLog{}
	configure := newNamedFakeStage(PhaseConfigure, "configure", log)
	build := newNamedFakeStage(PhaseBuild, "build", log)

	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Clean(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	require.Equal(t, []string{"build:clean", "configure:clean"}, log.snapshot())
}

func TestPipelineAddStageRejectsIllFormedPhase(t *testing.T) {
	t.Parallel()
	p := NewPipeline("/tmp/build", "/tmp/src")
	stage := newFakeStage(PhaseBuild | PhaseInstall)
	err := p.AddStage(stage)
	require.True(t, IsCode(err, ErrInvalidArgument))
}

func TestPipelineAddStageRejectsWhileProgressInFlight(t *testing.T) {
	t.Parallel()

	blocking := newFakeStage(PhaseBuild)
	blocking.started = make(chan struct{})
	blocking.release = make(chan struct{})
	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(blocking))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the in-flight stage to start building")
	}

	err = p.AddStage(newFakeStage(PhaseInstall))
	require.True(t, IsCode(err, ErrNotInitialized))

	close(blocking.release)
	require.NoError(t, waitProgress(t, progress))
}

func TestPipelineBuildPublishesStageLifecycleEvents(t *testing.T) {
	t.Parallel()

	build := newFakeStage(PhaseBuild)
	pub := &recordingEventPublisher{}

	p := NewPipeline("/tmp/build", "/tmp/src", WithEventPublisher(pub))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	types := pub.eventTypes()
	require.Contains(t, types, ports.EventStageStarted)
	require.Contains(t, types, ports.EventStageCompleted)
	require.Contains(t, types, ports.EventPhaseChanged)
}

func TestPipelinePurgeRemovesBuildDirectoryViaReaper(t *testing.T) {
	t.Parallel()

	stage := newFakeStage(PhaseBuild)
	reaper := &fakeReaper{}

	p := NewPipeline("/tmp/build", "/tmp/src", WithDirectoryReaper(reaper))
	require.NoError(t, p.AddStage(stage))

	progress, err := p.Purge(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	require.Equal(t, []string{"purge"}, stage.recordedVerbs())
	require.True(t, reaper.executed)
	require.Contains(t, reaper.dirs, "/tmp/build")
}

func TestPipelineQueryDoesNotInvokeBuildOnAnyStage(t *testing.T) {
	t.Parallel()

	stage := newFakeStage(PhaseBuild)
	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(stage))

	require.NoError(t, p.Query(context.Background()))
	require.Equal(t, []string{"query"}, stage.recordedVerbs())
}

func TestPipelineBuildCancelledBeforeSecondStageAbortsRemaining(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	first := newFakeStage(PhaseConfigure)
	first.started = make(chan struct{})
	first.release = make(chan struct{})
	second := newFakeStage(PhaseBuild)

	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(first))
	require.NoError(t, p.AddStage(second))

	progress, err := p.Build(ctx, PhaseBuild)
	require.NoError(t, err)

	select {
	case <-first.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first stage to start building")
	}
	cancel()
	close(first.release)

	waitErr := waitProgress(t, progress)
	require.True(t, IsCode(waitErr, ErrCancelled))
	require.Empty(t, second.recordedVerbs())
}

func TestPipelinePhaseReflectsCompletedStagesAfterIdle(t *testing.T) {
	t.Parallel()

	configure := newFakeStage(PhaseConfigure)
	build := newFakeStage(PhaseBuild)

	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(&fakeFileSystem{}))
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))

	require.Equal(t, PhaseNone, p.Phase(), "a pipeline with no completed stages reports PhaseNone")

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	require.Equal(t, PhaseBuild, p.Phase(), "Phase() should reflect the highest completed stage once idle, not PhaseNone")
}

func TestPipelinePhaseStopsAtFirstIncompleteStage(t *testing.T) {
	t.Parallel()

	configure := newFakeStage(PhaseConfigure)
	configure.completed = true
	build := newFakeStage(PhaseBuild)
	build.completed = false
	install := newFakeStage(PhaseInstall)
	install.completed = true

	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))
	require.NoError(t, p.AddStage(install))

	require.NoError(t, p.Query(context.Background()))
	require.Equal(t, PhaseConfigure, p.Phase(), "an incomplete build stage should cap Phase() even though install is complete")
}

func TestPipelinePhaseRegressesAfterClean(t *testing.T) {
	t.Parallel()

	configure := newFakeStage(PhaseConfigure)
	build := newFakeStage(PhaseBuild)

	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(&fakeFileSystem{}))
	require.NoError(t, p.AddStage(configure))
	require.NoError(t, p.AddStage(build))

	progress, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))
	require.Equal(t, PhaseBuild, p.Phase())

	cleanProgress, err := p.Clean(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, cleanProgress))

	// Clean runs in reverse pipeline order: build is cleaned first
	// (regressing the mark to configure), then configure is cleaned too
	// (regressing it one step further, to whatever precedes configure in
	// the fixed phase order).
	require.Equal(t, PhaseAutogen, p.Phase(), "cleaning every matched stage should regress the completed mark past all of them")
}

func TestBuildPTYClosesDuplicatedFDOnceDriverFinishes(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	stage := newFakeStage(PhaseBuild)
	p := NewPipeline("/tmp/build", "/tmp/src", WithFileSystem(&fakeFileSystem{}))
	require.NoError(t, p.AddStage(stage))

	progress, err := p.BuildPTY(context.Background(), PhaseBuild, int(w.Fd()))
	require.NoError(t, err)
	require.NoError(t, waitProgress(t, progress))

	require.Equal(t, -1, progress.ptyFD, "finish should release the duplicated pty fd")

	// Close is a safe no-op once finish has already released the fd.
	require.NoError(t, progress.Close())

	// The caller's own fd must still be open; only the duplicate was closed.
	_, writeErr := w.Write([]byte("x"))
	require.NoError(t, writeErr)
}

func TestProgressCloseReleasesPTYForARejectedProgress(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	blocking := newFakeStage(PhaseBuild)
	blocking.started = make(chan struct{})
	blocking.release = make(chan struct{})
	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(blocking))

	first, err := p.BuildPTY(context.Background(), PhaseBuild, int(w.Fd()))
	require.NoError(t, err)

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first build to start")
	}

	// The second BuildPTY call dups w's fd into a Progress that immediately
	// gets discarded in favor of a rejectedProgress, since the pipeline
	// already has one in flight; beginProgress must close that discarded
	// Progress's duplicated fd itself; rejectedProgress never saw it.
	second, err := p.BuildPTY(context.Background(), PhaseBuild, int(w.Fd()))
	require.NoError(t, err)
	require.True(t, IsCode(waitProgress(t, second), ErrInvalidArgument))
	require.Equal(t, -1, second.ptyFD, "a rejected progress must not leave a zero-value fd field mistaken for stdin")
	require.NoError(t, second.Close())

	close(blocking.release)
	require.NoError(t, waitProgress(t, first))
}

func TestPipelineOnlyOneProgressAtATime(t *testing.T) {
	t.Parallel()

	stage := newFakeStage(PhaseBuild)
	stage.started = make(chan struct{})
	stage.release = make(chan struct{})
	p := NewPipeline("/tmp/build", "/tmp/src")
	require.NoError(t, p.AddStage(stage))

	first, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)

	select {
	case <-stage.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first build to start")
	}

	second, err := p.Build(context.Background(), PhaseBuild)
	require.NoError(t, err)
	require.True(t, IsCode(waitProgress(t, second), ErrInvalidArgument))

	close(stage.release)
	require.NoError(t, waitProgress(t, first))
}
