// Package cancel implements ports.Cancellable over a context.Context,
// standing in for the source's DexCancellable.
package cancel

import (
	"context"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// Cancellable wraps a context.Context and its cancel function.
type Cancellable struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New derives a cancellable child of parent.
func New(parent context.Context) *Cancellable {
	ctx, cancel := context.WithCancel(parent)
	return &Cancellable{ctx: ctx, cancel: cancel}
}

// Context implements ports.Cancellable.
func (c *Cancellable) Context() context.Context { return c.ctx }

// Cancelled implements ports.Cancellable.
func (c *Cancellable) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Cancel requests cancellation.
func (c *Cancellable) Cancel() { c.cancel() }

// Child derives a new Cancellable whose context is cancelled either when
// this one is, or independently via its own Cancel.
func (c *Cancellable) Child() *Cancellable {
	return New(c.ctx)
}

var _ ports.Cancellable = (*Cancellable)(nil)
