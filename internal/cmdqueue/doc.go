// Package cmdqueue implements the ordered deferred-command queue that every
// cross-goroutine operation in the runtime flows through.
//
// ARCHITECTURE:
//
// A Queue accumulates commands (void callbacks, or return callbacks bound
// to an asyncop.Op) in enqueue order. Flush atomically detaches the whole
// pending sequence as a Batch and leaves the queue empty and reusable;
// Playback executes a batch strictly FIFO. Executed batches are recycled
// through a small pool so steady-state operation performs no slice
// reallocation.
//
// Two synchronization policies exist and are fixed at construction:
//
//   - unlocked: producer and consumer are the same owning goroutine. No
//     mutex on the hot path; when checks are enabled, every call asserts
//     the caller is the owner and panics with an AffinityError otherwise.
//   - shared: a mutex guards the pending list; any goroutine may enqueue
//     while another flushes.
//
// Notify-on-complete commands carry a numeric callback ID; PlaybackNotify
// reports each ID immediately after — never before — that command runs.
// The dispatcher builds its block-until-complete waits on this.
//
// CancelAll is a hard drop: pending commands never execute, and any bound
// Ops are resolved as cancelled so pollers terminate.
package cmdqueue
