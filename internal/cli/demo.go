package cli

import (
	"encoding/binary"

	"github.com/keelware/keel/internal/coreobj"
	"github.com/keelware/keel/internal/framealloc"
)

// demoObject is the synthetic workload driven by the run command: a
// registered object whose snapshot is a single counter. Enough to push
// real traffic through registration, staging, upload, and dependency
// propagation without needing an actual renderer on the core side.
type demoObject struct {
	coreobj.Object
	value uint64
	deps  []*coreobj.Object
}

func (o *demoObject) CreateCore() coreobj.Core {
	return &demoCore{}
}

func (o *demoObject) SyncToCore(a *framealloc.Allocator) []byte {
	buf := a.Alloc(8)
	binary.LittleEndian.PutUint64(buf, o.value)
	return buf
}

func (o *demoObject) CoreDependencies() []*coreobj.Object {
	return o.deps
}

// demoCore is the core-loop counterpart: it applies snapshots and counts
// them, nothing more.
type demoCore struct {
	value   uint64
	applied uint64
}

func (c *demoCore) Initialize() {}

func (c *demoCore) SyncFromSim(data []byte) {
	c.value = binary.LittleEndian.Uint64(data)
	c.applied++
}

func (c *demoCore) Destroy() {}
