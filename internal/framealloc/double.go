package framealloc

// NumSyncBuffers is the number of allocator generations. Exactly two,
// because the simulation side may be at most one frame ahead of the core
// loop's consumption of staged data.
const NumSyncBuffers = 2

// DoubleBuffer owns the two frame-allocator generations.
//
// Within one frame, Writer() is the generation the simulation side stages
// snapshots into and Reader() is the generation whose snapshots the core
// loop may still be consuming. Swap is called once per simulation frame,
// at the frame boundary, after the previous upload command has been
// submitted: the roles exchange and the new writer generation is reset.
//
// Not safe for concurrent use; Swap and Writer are frame-boundary
// operations issued by the simulation side only.
type DoubleBuffer struct {
	gens  [NumSyncBuffers]*Allocator
	write int
	frame uint64
}

// NewDoubleBuffer creates both generations with the given per-generation
// capacity (DefaultCapacity when non-positive).
func NewDoubleBuffer(capacity int) *DoubleBuffer {
	db := &DoubleBuffer{}
	for i := range db.gens {
		db.gens[i] = NewAllocator(capacity)
	}
	return db
}

// Writer returns the generation currently being staged by the simulation
// side.
func (db *DoubleBuffer) Writer() *Allocator {
	return db.gens[db.write]
}

// Reader returns the generation the core loop consumes this frame.
func (db *DoubleBuffer) Reader() *Allocator {
	return db.gens[(db.write+1)%NumSyncBuffers]
}

// Frame returns the number of completed Swap calls. Useful for stamping
// profiler capture rows.
func (db *DoubleBuffer) Frame() uint64 {
	return db.frame
}

// Swap advances one frame: the current writer generation becomes readable
// by the core loop, and the other generation — whose data the core loop
// has finished with under the one-frame-ahead discipline — is reset and
// returned as the new writer.
func (db *DoubleBuffer) Swap() *Allocator {
	db.write = (db.write + 1) % NumSyncBuffers
	db.frame++
	w := db.gens[db.write]
	w.Reset()
	return w
}
