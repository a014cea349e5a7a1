package ports

import "context"

const (
	// EventPipelineInvalidated is emitted when a BuildManager reloads a
	// manifest and the in-memory Pipeline it serves is replaced.
	EventPipelineInvalidated = "pipeline.invalidated"
	// EventStageStarted is emitted when a driver reaches a stage: before
	// Query in the build driver (also for stages Query then reports
	// complete, which get no completed event), and before Clean or Purge
	// in the other drivers.
	EventStageStarted = "stage.started"
	// EventStageCompleted is emitted after a stage's verb returns
	// successfully.
	EventStageCompleted = "stage.completed"
	// EventStageFailed is emitted when a stage's verb returns an error.
	EventStageFailed = "stage.failed"
	// EventPhaseChanged is emitted whenever a Progress moves on to a new
	// current stage, including the transition back to none on
	// completion.
	EventPhaseChanged = "phase.changed"
)

// DomainEvent represents a significant occurrence within the pipeline
// core. Events carry structured payloads that downstream subscribers
// (loggers, audit sinks) use for observability.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch
// is synchronous — Publish blocks until all handlers run — so that audit
// records are durable before the call returns. Handlers may spawn
// goroutines for async work if it should continue in the background.
// Implementations must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Handlers should
// avoid panicking; failures should be surfaced via returned errors so
// publishers can log diagnostics and continue delivering to remaining
// subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events and release resources.
type Subscription interface {
	Unsubscribe()
}
