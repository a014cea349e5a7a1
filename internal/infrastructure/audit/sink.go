// Package audit renders DomainEvents as a durable JSON-lines trail via
// zerolog, independent of (and typically in addition to) the structured
// human-facing logger in internal/infrastructure/logging.
package audit

import (
	"context"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// Sink writes one compact JSON object per event to an underlying writer,
// e.g. an append-only file shared by every build invocation against a
// project so the full phase/stage history can be grepped later.
type Sink struct {
	logger zerolog.Logger
}

// New constructs a Sink writing to w. w is typically an os.File opened
// with O_APPEND so concurrent runs interleave safely at the line level.
func New(w io.Writer) *Sink {
	return &Sink{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Handle implements ports.EventHandler. It never returns an error itself:
// a broken audit sink must not abort a build, so write failures are
// silently dropped and nothing records them.
func (s *Sink) Handle(ctx context.Context, event ports.DomainEvent) error {
	if s == nil || event == nil {
		return nil
	}

	entry := s.logger.Log().Str("event_type", event.EventType())
	if id := ports.GetCorrelationID(ctx); id != "" {
		entry = entry.Str("correlation_id", id)
	}

	switch payload := event.Payload().(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(payload))
		for key := range payload {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entry = entry.Interface(key, payload[key])
		}
	case nil:
	default:
		entry = entry.Interface("payload", payload)
	}

	entry.Send()
	return nil
}

// Attach subscribes the sink to every event type this module emits,
// returning the resulting subscriptions so the caller can unwind them on
// shutdown (e.g. when a BuildManager reload replaces the pipeline being
// audited).
func Attach(pub ports.EventPublisher, sink *Sink) ([]ports.Subscription, error) {
	eventTypes := []string{
		ports.EventPipelineInvalidated,
		ports.EventStageStarted,
		ports.EventStageCompleted,
		ports.EventStageFailed,
		ports.EventPhaseChanged,
	}

	subs := make([]ports.Subscription, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		sub, err := pub.Subscribe(eventType, sink.Handle)
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
