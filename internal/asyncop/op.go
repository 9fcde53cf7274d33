package asyncop

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrCancelled is the resolution carried by an Op whose command was dropped
// by CancelAll before it ever executed. The command's side effects did not
// and will not happen.
var ErrCancelled = errors.New("asyncop: command cancelled before execution")

// ErrUnresolved is returned by value accessors called before resolution.
var ErrUnresolved = errors.New("asyncop: op not yet resolved")

// outcome is the immutable cell published exactly once by the resolver.
type outcome struct {
	value any
	err   error
}

// Op is a single-slot future shared between the goroutine that queued a
// command and the goroutine that executes it.
//
// Thread-safety model:
//   - Resolve/Cancel: called by the executing side; first call wins
//   - IsResolved/Value/Err/Done/Wait: safe from any goroutine
//
// Publication uses an atomic pointer swap, so a reader that observes
// IsResolved() == true is guaranteed to see the resolved value.
type Op struct {
	result atomic.Pointer[outcome]
	done   chan struct{}
}

// New creates an unresolved Op.
func New() *Op {
	return &Op{done: make(chan struct{})}
}

// IsResolved reports whether the Op has been resolved (or cancelled).
func (o *Op) IsResolved() bool {
	return o.result.Load() != nil
}

// Resolve publishes the result value and wakes all waiters.
// Only the first resolution takes effect; it returns false if the Op was
// already resolved or cancelled.
func (o *Op) Resolve(value any) bool {
	return o.publish(&outcome{value: value})
}

// Cancel resolves the Op with ErrCancelled. Used by queue cancellation so
// that pollers terminate instead of spinning on a value that will never
// arrive. Returns false if the Op was already resolved.
func (o *Op) Cancel() bool {
	return o.publish(&outcome{err: ErrCancelled})
}

func (o *Op) publish(out *outcome) bool {
	if !o.result.CompareAndSwap(nil, out) {
		return false
	}
	close(o.done)
	return true
}

// Value returns the resolved value. Calling it before resolution yields
// ErrUnresolved; after cancellation it yields ErrCancelled. Callers that
// poll should guard with IsResolved first.
func (o *Op) Value() (any, error) {
	out := o.result.Load()
	if out == nil {
		return nil, ErrUnresolved
	}
	return out.value, out.err
}

// Err returns nil while unresolved or after a normal resolution, and
// ErrCancelled after cancellation.
func (o *Op) Err() error {
	out := o.result.Load()
	if out == nil {
		return nil
	}
	return out.err
}

// Done returns a channel closed upon resolution. Use with select for
// context-aware waiting.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the Op resolves or ctx is cancelled, returning the
// resolved value or the first error encountered.
func (o *Op) Wait(ctx context.Context) (any, error) {
	select {
	case <-o.done:
		return o.Value()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ValueAs returns the resolved value asserted to T. The bool result is
// false if the Op is unresolved, cancelled, or holds a value of a
// different type.
func ValueAs[T any](o *Op) (T, bool) {
	var zero T
	v, err := o.Value()
	if err != nil {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
