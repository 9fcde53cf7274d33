package coreobj

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/keelware/keel/internal/asyncop"
	"github.com/keelware/keel/internal/coreth"
)

// Manager is the process-wide registry of live dual-sided objects.
//
// Thread-safety model:
//   - Register/Unregister/Notify*: sim side, plus out-of-band loader
//     goroutines; serialized by mu
//   - SyncToCore: once per frame by the owning application loop
//   - cores: touched only by queued commands, i.e. only on the core loop
type Manager struct {
	ct  *coreth.CoreThread
	log *slog.Logger

	nextID atomic.Uint64

	mu         sync.Mutex
	objects    map[ID]*Object
	dirty      map[ID]*Object
	deps       map[ID][]ID
	dependants map[ID]map[ID]struct{}

	// cores is the core-side registry: ID to live counterpart. Bound by
	// the init command, unbound by the destroy command, read by the upload
	// command. Core loop only; no lock.
	cores map[ID]Core

	lastSynced atomic.Uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a registry bound to the given dispatcher. The
// application entry point owns the single instance and passes it to
// whichever subsystem needs it.
func NewManager(ct *coreth.CoreThread, opts ...ManagerOption) *Manager {
	m := &Manager{
		ct:         ct,
		log:        slog.Default(),
		objects:    make(map[ID]*Object),
		dirty:      make(map[ID]*Object),
		deps:       make(map[ID][]ID),
		dependants: make(map[ID]map[ID]struct{}),
		cores:      make(map[ID]Core),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register assigns an ID to impl's Object half and adds it to the
// registry. The object is not yet core-initialized; call Initialize.
func (m *Manager) Register(impl Syncer) *Object {
	obj := impl.Obj()
	obj.id = ID(m.nextID.Add(1))
	obj.mgr = m
	obj.impl = impl

	m.mu.Lock()
	m.objects[obj.id] = obj
	m.mu.Unlock()

	m.log.Debug("object registered", "id", uint64(obj.id))
	return obj
}

// Initialize performs core-side setup. Objects without a counterpart are
// usable immediately and this is a no-op. Otherwise the setup command is
// queued — immediately visible to the loop — and Initialize returns
// without waiting; the object is usable on the sim side at once but not
// safe for core-loop operations until the command has executed (use
// BlockUntilCoreInitialized for the rare synchronous caller). When called
// on the core loop itself, setup runs inline.
func (m *Manager) Initialize(obj *Object) {
	core := obj.impl.CreateCore()
	if core == nil {
		return
	}
	obj.core = core

	if m.ct.OnCoreThread() {
		core.Initialize()
		m.cores[obj.id] = core
		return
	}

	obj.setFlag(flagNeedsCoreInit)
	id := obj.id
	obj.initOp = m.ct.QueueReturnCommand(func(op *asyncop.Op) {
		core.Initialize()
		m.cores[id] = core
		obj.clearFlag(flagNeedsCoreInit)
		op.Resolve(nil)
	}, coreth.FlagInternal)
}

// Destroy marks the object destroyed, drops it from the sim-side registry,
// and queues teardown of the counterpart. A destroy racing a pending
// upload is benign: the upload skips IDs with no bound counterpart.
func (m *Manager) Destroy(obj *Object) {
	if obj.IsDestroyed() {
		return
	}
	obj.setFlag(flagDestroyed)
	m.Unregister(obj)

	core := obj.core
	if core == nil {
		return
	}
	id := obj.id
	if m.ct.OnCoreThread() {
		delete(m.cores, id)
		core.Destroy()
		return
	}
	m.ct.QueueCommand(func() {
		delete(m.cores, id)
		core.Destroy()
	}, coreth.FlagInternal)
}

// Unregister removes the object from the registry, its dirty entry, and
// both sides of the dependency adjacency.
func (m *Manager) Unregister(obj *Object) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := obj.id
	delete(m.objects, id)
	delete(m.dirty, id)

	for _, dep := range m.deps[id] {
		if set := m.dependants[dep]; set != nil {
			delete(set, id)
		}
	}
	delete(m.deps, id)
	delete(m.dependants, id)
}

// NotifyCoreDirty ors flags into the object's dirty mask and schedules it
// for the next sync pass.
func (m *Manager) NotifyCoreDirty(obj *Object, flags uint32) {
	if obj.IsDestroyed() {
		return
	}
	for {
		old := obj.dirty.Load()
		if obj.dirty.CompareAndSwap(old, old|flags) {
			break
		}
	}

	m.mu.Lock()
	m.dirty[obj.id] = obj
	m.mu.Unlock()
}

// NotifyDependenciesDirty re-collects the object's dependency list and
// rebuilds the adjacency for it, keeping the inverse index consistent.
func (m *Manager) NotifyDependenciesDirty(obj *Object) {
	newDeps := obj.impl.CoreDependencies()

	m.mu.Lock()
	defer m.mu.Unlock()

	id := obj.id
	for _, dep := range m.deps[id] {
		if set := m.dependants[dep]; set != nil {
			delete(set, id)
		}
	}

	ids := make([]ID, 0, len(newDeps))
	for _, dep := range newDeps {
		if dep == nil || dep.id == 0 {
			continue
		}
		ids = append(ids, dep.id)
		set := m.dependants[dep.id]
		if set == nil {
			set = make(map[ID]struct{})
			m.dependants[dep.id] = set
		}
		set[id] = struct{}{}
	}
	m.deps[id] = ids
}

// DirtyCount returns the number of objects awaiting sync.
func (m *Manager) DirtyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

// LastSynced returns the number of objects staged by the most recent
// SyncToCore pass.
func (m *Manager) LastSynced() uint64 {
	return m.lastSynced.Load()
}
