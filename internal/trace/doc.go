// Package trace records an ordered, deterministic log of runtime activity
// (enqueues, submits, executions, frame boundaries, sync passes) for
// debugging and golden-file testing.
//
// Events carry a monotonic sequence number from an atomic counter, never a
// wall-clock timestamp, so a replayed scenario produces a byte-identical
// canonical dump. Labels are NFC-normalized before serialization: they
// often originate from user-facing asset names, and two Unicode spellings
// of the same label must not produce two different traces.
package trace
