package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// driverKind selects which of the three verb sequences a Progress's
// goroutine runs.
type driverKind int

const (
	driverBuild driverKind = iota
	driverClean
	driverPurge
)

// Progress is a one-shot handle to a single build, clean, or purge run
// over a subset of a Pipeline's stages. It is created by Pipeline.Build,
// Pipeline.Clean, or Pipeline.Purge and is good for exactly one run: the
// underlying driver goroutine is spawned at most once, enforced by an
// explicit "already assigned" check rather than relying on sync.Once's
// silent no-op, so a caller that mistakenly reuses a Progress gets a
// NotInitialized error instead of quietly doing nothing.
type Progress struct {
	pipeline *Pipeline
	targetPhase Phase
	stages   []Stage
	builddir string
	ptyFD    int

	fs     ports.FileSystem
	reaper ports.DirectoryReaper
	logger ports.Logger
	events ports.EventPublisher

	mu           sync.Mutex
	assigned     bool
	currentStage Stage
	observers    observerList

	done chan struct{}
	err  error
}

// newProgress constructs a Progress over the stages of pipeline whose
// phase is at or before targetPhase (CumulativeMask), in pipeline order.
// A ptyFD >= 0 is duplicated here and the Progress owns the duplicate; a
// value of -1 means no PTY is attached.
func newProgress(p *Pipeline, targetPhase Phase, ptyFD int) (*Progress, error) {
	if !WellFormed(targetPhase) {
		return nil, newInvalidArgument("target phase must have exactly one primary bit set")
	}

	var stages []Stage
	for _, s := range p.stages {
		if Matches(s.GetPhase(), CumulativeMask(targetPhase)) {
			stages = append(stages, s)
		}
	}

	dupFD := -1
	if ptyFD >= 0 {
		d, err := ptyDup(ptyFD)
		if err != nil {
			return nil, newIOError(err, "duplicate pty fd")
		}
		dupFD = d
	}

	return &Progress{
		pipeline:    p,
		targetPhase: targetPhase,
		stages:      stages,
		builddir:    p.builddir,
		ptyFD:       dupFD,
		fs:          p.fs,
		reaper:      p.reaper,
		logger:      p.logger,
		events:      p.events,
		done:        make(chan struct{}),
	}, nil
}

// Wait blocks until the driver goroutine finishes (or ctx is cancelled,
// whichever comes first) and returns the driver's result. Calling Wait
// before a driver has been assigned (i.e. before build/clean/purge was
// invoked through a Pipeline) returns a NotInitialized DomainError.
func (p *Progress) Wait(ctx context.Context) error {
	p.mu.Lock()
	assigned := p.assigned
	p.mu.Unlock()
	if !assigned {
		return newNotInitialized("attempt to await progress without an operation")
	}

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return newCancelled(ctx.Err())
	}
}

// Phase returns the phase of the stage currently being driven, or
// PhaseNone if no driver is active (either not yet started, or finished).
func (p *Progress) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentStage == nil {
		return PhaseNone
	}
	return p.currentStage.GetPhase()
}

// AddPhaseChangeListener registers l to be notified whenever the current
// stage changes. The returned func removes the listener.
func (p *Progress) AddPhaseChangeListener(l PhaseChangeListener) (remove func()) {
	return p.observers.add(l)
}

// Print writes an opaque, unbuffered message to the attached PTY, if any.
// If no PTY was attached to this Progress, Print is a no-op: this mirrors
// the source behavior of silently discarding output when there is nowhere
// to send it.
func (p *Progress) Print(format string, args ...any) {
	p.mu.Lock()
	fd := p.ptyFD
	p.mu.Unlock()
	if fd < 0 {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if _, err := ptyWrite(fd, msg); err != nil && p.logger != nil {
		p.logger.Warn(context.Background(), "pty write failed", "error", err)
	}
}

// SetupPTY wires this Progress's PTY fd into launcher's stdin, stdout, and
// stderr, each as an independently duplicated descriptor so the launcher
// can close them without affecting this Progress's own copy. If no PTY is
// attached, SetupPTY is a no-op.
func (p *Progress) SetupPTY(launcher ports.ProcessLauncher) error {
	p.mu.Lock()
	fd := p.ptyFD
	p.mu.Unlock()
	if fd < 0 {
		return nil
	}
	for _, target := range []int{0, 1, 2} {
		dup, err := ptyDup(fd)
		if err != nil {
			return newIOError(err, "duplicate pty fd")
		}
		launcher.TakeFD(dup, target)
	}
	return nil
}

// setCurrentStage updates the current stage, notifying listeners only
// when it actually changes (matching the source's g_set_object-guarded
// notify).
func (p *Progress) setCurrentStage(stage Stage) {
	p.mu.Lock()
	changed := p.currentStage != stage
	if changed {
		p.currentStage = stage
	}
	p.mu.Unlock()

	if changed {
		phase := PhaseNone
		if stage != nil {
			phase = stage.GetPhase()
		}
		p.observers.notify(p, stage, phase)
		if p.events != nil {
			_ = p.events.Publish(context.Background(), phaseChangedEvent{progress: p, stage: stage, phase: phase})
		}
	}
}

// tryAssign marks this Progress as driven exactly once. It returns false
// if a driver was already assigned.
func (p *Progress) tryAssign() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.assigned {
		return false
	}
	p.assigned = true
	return true
}

func (p *Progress) finish(err error) {
	p.err = err
	p.closePTY()
	close(p.done)
}

// closePTY releases this Progress's duplicated PTY fd, if any. It is safe
// to call more than once.
func (p *Progress) closePTY() {
	p.mu.Lock()
	fd := p.ptyFD
	p.ptyFD = -1
	p.mu.Unlock()

	if fd < 0 {
		return
	}
	if err := ptyClose(fd); err != nil && p.logger != nil {
		p.logger.Warn(context.Background(), "pty fd close failed", "error", err)
	}
}

// Close releases this Progress's duplicated PTY fd, if any, without
// waiting for the driver to finish. Callers that attach a PTY (see
// Pipeline.BuildPTY) should call Close after Wait returns, as a backstop
// in case the driver never started and finish was never reached. It is
// safe to call more than once.
func (p *Progress) Close() error {
	p.closePTY()
	return nil
}

// phaseChangedEvent implements ports.DomainEvent for stage-change
// notifications.
type phaseChangedEvent struct {
	progress *Progress
	stage    Stage
	phase    Phase
}

func (e phaseChangedEvent) EventType() string { return ports.EventPhaseChanged }

func (e phaseChangedEvent) Payload() interface{} {
	return map[string]any{
		"phase": e.phase.String(),
	}
}

// stageEvent implements ports.DomainEvent for per-stage start/complete/
// fail notifications.
type stageEvent struct {
	kind  string
	phase Phase
	err   error
}

func (e stageEvent) EventType() string { return e.kind }

func (e stageEvent) Payload() interface{} {
	payload := map[string]any{"phase": e.phase.String()}
	if e.err != nil {
		payload["error"] = e.err.Error()
	}
	return payload
}
