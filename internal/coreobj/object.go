package coreobj

import (
	"sync/atomic"

	"github.com/keelware/keel/internal/asyncop"
	"github.com/keelware/keel/internal/framealloc"
)

// ID identifies a registered object. Zero is reserved and never assigned.
type ID uint64

// object state flags.
const (
	flagDestroyed     uint32 = 1 << 0
	flagNeedsCoreInit uint32 = 1 << 1
)

// DirtyAll marks every aspect of an object dirty; concrete objects carve
// the bitmask up as they see fit.
const DirtyAll uint32 = ^uint32(0)

// Core is the core-loop counterpart of a registered object. All three
// methods run exclusively on the core loop.
type Core interface {
	// Initialize sets up core-side state before any sync reaches it.
	Initialize()
	// SyncFromSim applies one immutable snapshot staged by the sim side.
	SyncFromSim(data []byte)
	// Destroy releases core-side state. No SyncFromSim follows it.
	Destroy()
}

// Syncer is implemented by concrete simulation-side objects. Embedding
// Object provides Obj for free; the rest is the object's own behavior.
type Syncer interface {
	// Obj returns the embedded Object half.
	Obj() *Object

	// CreateCore builds the core-loop counterpart, or returns nil for an
	// object that needs none (such objects are fully usable at once).
	CreateCore() Core

	// SyncToCore writes the object's current sync snapshot into the given
	// frame allocator and returns the staged blob. Runs on the sim side;
	// the returned slice must come from the allocator so its lifetime is
	// frame-scoped.
	SyncToCore(a *framealloc.Allocator) []byte

	// CoreDependencies returns the objects this object currently depends
	// on. Re-collected whenever the manager is told dependencies changed.
	CoreDependencies() []*Object
}

// Object is the simulation-side half of a dual-sided entity. Concrete
// objects embed it and implement Syncer; the Manager populates it at
// registration.
//
// The sim side owns all mutation of an Object; the only cross-goroutine
// traffic is flag reads, which are atomic.
type Object struct {
	id    ID
	flags atomic.Uint32
	dirty atomic.Uint32

	mgr    *Manager
	impl   Syncer
	core   Core
	initOp *asyncop.Op
}

// Obj returns o; it exists so embedding Object satisfies that part of the
// Syncer interface.
func (o *Object) Obj() *Object {
	return o
}

// ID returns the object's registry ID (0 if unregistered).
func (o *Object) ID() ID {
	return o.id
}

// Core returns the core-side handle, or nil for sim-only objects and
// objects whose Initialize has not been called yet. The handle is opaque
// on the sim side; only queued commands may call into it.
func (o *Object) Core() Core {
	return o.core
}

// IsDestroyed reports whether Destroy has been called.
func (o *Object) IsDestroyed() bool {
	return o.flags.Load()&flagDestroyed != 0
}

// CoreInitialized reports whether the object is safe to use for core-loop
// operations: either it never needed core-side setup, or its queued
// initialization command has executed.
func (o *Object) CoreInitialized() bool {
	return o.flags.Load()&flagNeedsCoreInit == 0
}

// DirtyFlags returns the current dirty bitmask (0 means clean).
func (o *Object) DirtyFlags() uint32 {
	return o.dirty.Load()
}

// MarkCoreDirty ors flags into the dirty bitmask and registers the object
// for sync this frame. A zero argument means DirtyAll.
func (o *Object) MarkCoreDirty(flags uint32) {
	if flags == 0 {
		flags = DirtyAll
	}
	o.mgr.NotifyCoreDirty(o, flags)
}

// MarkCoreClean resets the dirty bitmask after a successful sync download.
func (o *Object) MarkCoreClean() {
	o.dirty.Store(0)
}

// MarkDependenciesDirty tells the manager this object's dependency list
// changed and must be re-collected via CoreDependencies.
func (o *Object) MarkDependenciesDirty() {
	o.mgr.NotifyDependenciesDirty(o)
}

// Initialize performs core-side setup via the manager; see
// Manager.Initialize for the immediate-versus-queued contract.
func (o *Object) Initialize() {
	o.mgr.Initialize(o)
}

// Destroy tears the object down via the manager; see Manager.Destroy.
func (o *Object) Destroy() {
	o.mgr.Destroy(o)
}

// BlockUntilCoreInitialized waits for the queued initialization command.
// For sim-only objects it returns immediately. Must not be called from a
// command running on the core loop.
func (o *Object) BlockUntilCoreInitialized() {
	if o.initOp == nil {
		return
	}
	<-o.initOp.Done()
}

func (o *Object) setFlag(f uint32) {
	for {
		old := o.flags.Load()
		if o.flags.CompareAndSwap(old, old|f) {
			return
		}
	}
}

func (o *Object) clearFlag(f uint32) {
	for {
		old := o.flags.Load()
		if o.flags.CompareAndSwap(old, old&^f) {
			return
		}
	}
}
