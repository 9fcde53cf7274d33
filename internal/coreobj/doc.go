// Package coreobj implements the dual-sided object model: a simulation-side
// Object paired with a core-loop counterpart, kept consistent by a
// once-per-frame, two-phase sync pass driven by the Manager.
//
// The two phases exist because core-loop code must never read simulation
// state directly — it may be mid-mutation. Phase one (download) runs on the
// simulation side and copies each dirty object's state into an immutable
// blob inside the next frame-allocator generation. Phase two (upload) runs
// as a queued core command and applies each blob to the live counterpart,
// skipping counterparts destroyed in between. The price is one copy and
// one frame of staleness; the reward is no data race by construction.
//
// Dependencies: the Manager keeps, per object, the set of objects it
// depends on and the inverse. Dirtying an object dirties its transitive
// dependants within the same sync pass, so a descriptor referencing a
// mutated buffer re-syncs in the same frame.
package coreobj
