// Package coreth implements the dedicated core-loop dispatcher.
//
// ARCHITECTURE:
//
// Single-Consumer Command Loop:
// One long-lived goroutine (the "core loop") owns every core-side object
// and executes every queued command. All mutations of core-side state
// happen on that goroutine, which keeps the GPU-facing half of the engine
// free of locks and races by construction.
//
// Producers never share queues. Each calling goroutine gets its own
// unlocked staging queue from a lazily populated registry (lock on first
// touch only); Submit flushes the caller's queue and appends the detached
// batch to the loop-visible inbox. The one mutex-guarded path is the
// internal queue used by FlagInternal submissions that must become visible
// immediately.
//
// Ordering: commands staged on one caller queue execute in strict FIFO
// order relative to each other. Batches from different callers are ordered
// by Submit arrival. Nothing already visible to the loop is dropped on
// shutdown; the loop drains before exiting.
//
// Blocking: Submit(block) and FlagBlock register a numeric callback ID,
// the loop reports the ID after executing the matching command, and the
// waiter sleeps on a condition variable until then. Blocking from inside a
// command running on the core loop would self-deadlock; with checks
// enabled this panics instead.
package coreth
