package ports

import "context"

// Cancellable is the narrow view of a cancellation source a Progress
// exposes to stages and callers without handing out the ability to
// cancel things it doesn't own. It mirrors the role the source's
// DexCancellable plays: something a stage can observe and derive a
// child context from, but not arbitrarily cancel on behalf of the whole
// pipeline.
type Cancellable interface {
	// Context returns a context.Context that is cancelled when this
	// Cancellable is cancelled.
	Context() context.Context

	// Cancelled reports whether cancellation has already been
	// requested.
	Cancelled() bool
}
