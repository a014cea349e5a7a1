package pipeline

import (
	"context"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// startBuild assigns this Progress's driver to the build fiber and spawns
// it. It is called at most once per Progress, from Pipeline.Build.
func (p *Progress) startBuild(ctx context.Context) error {
	if !p.tryAssign() {
		return newNotInitialized("progress already has an operation assigned")
	}
	go p.runBuild(ctx)
	return nil
}

func (p *Progress) runBuild(ctx context.Context) {
	err := p.buildFiber(ctx)
	p.finish(err)
}

// buildFiber mkdirs the build directory, then walks the matched stages in
// pipeline order: query each stage, skip it if already complete, else
// build it. The first stage to fail aborts the whole run. current_stage
// is cleared (and listeners notified) once the walk finishes or aborts,
// mirroring the source's unconditional clear at the end of the fiber.
func (p *Progress) buildFiber(ctx context.Context) error {
	if p.fs != nil {
		if err := p.fs.MkdirWithParents(ctx, p.builddir, 0750); err != nil {
			return newIOError(err, "create build directory %q", p.builddir)
		}
	}

	defer p.setCurrentStage(nil)

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return newCancelled(err)
		}

		p.setCurrentStage(stage)
		p.publish(ctx, ports.EventStageStarted, stage.GetPhase(), nil)

		completed, err := stage.Query(ctx)
		if err != nil && p.logger != nil {
			p.logger.Warn(ctx, "stage query failed", "phase", stage.GetPhase().String(), "error", err)
		}
		if completed {
			p.pipeline.markPhaseComplete(stage.GetPhase())
			continue
		}

		if err := stage.Build(ctx); err != nil {
			p.publish(ctx, ports.EventStageFailed, stage.GetPhase(), err)
			return err
		}
		p.pipeline.markPhaseComplete(stage.GetPhase())
		p.publish(ctx, ports.EventStageCompleted, stage.GetPhase(), nil)
	}

	return nil
}

// startClean assigns this Progress's driver to the clean fiber and spawns
// it.
func (p *Progress) startClean(ctx context.Context) error {
	if !p.tryAssign() {
		return newNotInitialized("progress already has an operation assigned")
	}
	go p.runClean(ctx)
	return nil
}

func (p *Progress) runClean(ctx context.Context) {
	err := p.cleanFiber(ctx)
	p.finish(err)
}

// cleanFiber walks the matched stages in reverse pipeline order, calling
// Clean on each. Reverse order undoes later phases before earlier ones,
// matching the dependency direction a clean must respect (e.g. clean the
// install phase before the build phase it came from).
func (p *Progress) cleanFiber(ctx context.Context) error {
	defer p.setCurrentStage(nil)

	for i := len(p.stages) - 1; i >= 0; i-- {
		stage := p.stages[i]

		if err := ctx.Err(); err != nil {
			return newCancelled(err)
		}

		p.setCurrentStage(stage)
		p.publish(ctx, ports.EventStageStarted, stage.GetPhase(), nil)

		if err := stage.Clean(ctx); err != nil {
			p.publish(ctx, ports.EventStageFailed, stage.GetPhase(), err)
			return err
		}
		p.pipeline.markPhaseIncomplete(stage.GetPhase())
		p.publish(ctx, ports.EventStageCompleted, stage.GetPhase(), nil)
	}

	return nil
}

// startPurge assigns this Progress's driver to the purge fiber and spawns
// it.
func (p *Progress) startPurge(ctx context.Context) error {
	if !p.tryAssign() {
		return newNotInitialized("progress already has an operation assigned")
	}
	go p.runPurge(ctx)
	return nil
}

func (p *Progress) runPurge(ctx context.Context) {
	err := p.purgeFiber(ctx)
	p.finish(err)
}

// purgeFiber walks the matched stages in reverse order calling Purge, then
// unconditionally removes the pipeline's build directory (as both a
// directory and, in case it is instead a marker file, as a file) via a
// DirectoryReaper. This mirrors the source exactly: there is no guard
// against the build directory being something the caller still wanted —
// purge is destructive by design.
func (p *Progress) purgeFiber(ctx context.Context) error {
	defer p.setCurrentStage(nil)

	for i := len(p.stages) - 1; i >= 0; i-- {
		stage := p.stages[i]

		if err := ctx.Err(); err != nil {
			return newCancelled(err)
		}

		p.setCurrentStage(stage)
		p.publish(ctx, ports.EventStageStarted, stage.GetPhase(), nil)

		if err := stage.Purge(ctx); err != nil {
			p.publish(ctx, ports.EventStageFailed, stage.GetPhase(), err)
			return err
		}
		p.pipeline.markPhaseIncomplete(stage.GetPhase())
		p.publish(ctx, ports.EventStageCompleted, stage.GetPhase(), nil)
	}

	if p.reaper != nil {
		p.reaper.AddDirectory(p.builddir, 0)
		p.reaper.AddFile(p.builddir, 0)
		if err := p.reaper.Execute(ctx); err != nil {
			return newIOError(err, "purge build directory %q", p.builddir)
		}
	}

	return nil
}

func (p *Progress) publish(ctx context.Context, kind string, phase Phase, err error) {
	if p.events == nil {
		return
	}
	_ = p.events.Publish(ctx, stageEvent{kind: kind, phase: phase, err: err})
}
