package coreobj

import (
	"sort"

	"github.com/keelware/keel/internal/coreth"
)

// syncEntry records one staged snapshot: which counterpart it targets and
// the frame-scoped blob to apply.
type syncEntry struct {
	id   ID
	data []byte
}

// SyncToCore runs the per-frame synchronization pass. Called exactly once
// per simulation frame by the owning application loop, after CoreThread
// Update has advanced the frame allocator generation.
//
// Phase one, on the calling (sim) goroutine: dirty state is propagated to
// transitive dependants, then every dirty object stages its snapshot into
// the writer generation and is marked clean. Objects are processed in ID
// order so a frame's download is deterministic.
//
// Phase two is queued as a core command: each staged blob is applied to
// the live counterpart looked up by ID. Counterparts destroyed since the
// download — and objects whose init command has not run, which cannot
// happen on the internal queue's FIFO — are skipped, not faulted.
func (m *Manager) SyncToCore() {
	dirty := m.collectDirty()
	if len(dirty) == 0 {
		m.lastSynced.Store(0)
		return
	}

	alloc := m.ct.Frames().Writer()
	entries := make([]syncEntry, 0, len(dirty))
	for _, obj := range dirty {
		if obj.IsDestroyed() || obj.core == nil {
			obj.MarkCoreClean()
			continue
		}
		blob := obj.impl.SyncToCore(alloc)
		entries = append(entries, syncEntry{id: obj.id, data: blob})
		obj.MarkCoreClean()
	}
	m.lastSynced.Store(uint64(len(entries)))
	if len(entries) == 0 {
		return
	}

	m.ct.QueueCommand(func() { m.syncUpload(entries) }, coreth.FlagInternal)
}

// collectDirty snapshots and drains the dirty set in ascending ID order,
// then walks the inverse adjacency to mark every transitive dependant
// dirty for the following pass: a dependant's own state did not change,
// but its view of the dependency did, so its sync data is stale until it
// re-syncs one frame later.
func (m *Manager) collectDirty() []*Object {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.dirty) == 0 {
		return nil
	}

	snapshot := make([]*Object, 0, len(m.dirty))
	seen := make(map[ID]struct{}, len(m.dirty))
	queue := make([]ID, 0, len(m.dirty))
	for id, obj := range m.dirty {
		snapshot = append(snapshot, obj)
		seen[id] = struct{}{}
		queue = append(queue, id)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })
	m.dirty = make(map[ID]*Object)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for depID := range m.dependants[id] {
			if _, ok := seen[depID]; ok {
				continue
			}
			seen[depID] = struct{}{}
			queue = append(queue, depID)
			dep := m.objects[depID]
			if dep == nil {
				continue
			}
			for {
				old := dep.dirty.Load()
				if dep.dirty.CompareAndSwap(old, old|DirtyAll) {
					break
				}
			}
			m.dirty[depID] = dep
		}
	}

	return snapshot
}

// syncUpload is phase two; core loop only.
func (m *Manager) syncUpload(entries []syncEntry) {
	applied := 0
	for _, e := range entries {
		core, ok := m.cores[e.id]
		if !ok {
			// Destroyed between download and upload; expected during
			// teardown.
			continue
		}
		core.SyncFromSim(e.data)
		applied++
	}
	if applied != len(entries) {
		m.log.Debug("sync upload skipped stale targets",
			"staged", len(entries), "applied", applied)
	}
}
