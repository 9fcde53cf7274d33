package framealloc

// DefaultCapacity is the per-generation buffer size used when no size is
// configured. Sync snapshots are small; 256 KiB covers a typical frame
// without overflow blocks.
const DefaultCapacity = 256 << 10

// alignment for all allocations. Blobs are read back as raw bytes, so
// 8-byte alignment keeps any embedded uint64 views legal.
const alignment = 8

// Allocator is a bump allocator over a single pre-allocated buffer.
//
// Alloc is O(1): advance an offset, return the slice. Memory is reclaimed
// only wholesale via Reset. Allocations that do not fit the remaining space
// go to overflow blocks so that a heavy frame degrades instead of failing;
// overflow blocks are dropped on Reset and the main buffer retained.
//
// Not safe for concurrent use. Each generation is written by exactly one
// goroutine per frame; the DoubleBuffer's swap discipline provides the
// cross-goroutine handoff.
type Allocator struct {
	buf      []byte
	off      int
	overflow [][]byte
}

// NewAllocator creates an allocator with the given buffer capacity.
// A non-positive capacity falls back to DefaultCapacity.
func NewAllocator(capacity int) *Allocator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Allocator{buf: make([]byte, aligned(capacity))}
}

func aligned(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Alloc returns a zeroed slice of exactly n bytes, valid until the next
// Reset. Alloc(0) returns an empty, non-nil slice.
func (a *Allocator) Alloc(n int) []byte {
	if n < 0 {
		panic("framealloc: negative allocation size")
	}
	step := aligned(n)
	if a.off+step > len(a.buf) {
		block := make([]byte, n)
		a.overflow = append(a.overflow, block)
		return block
	}
	p := a.buf[a.off : a.off+n : a.off+n]
	a.off += step
	// The buffer is recycled across frames; hand out zeroed memory so a
	// stale previous-frame snapshot can never leak through a short write.
	clear(p)
	return p
}

// Copy stages a snapshot: allocates len(src) bytes and copies src in.
func (a *Allocator) Copy(src []byte) []byte {
	dst := a.Alloc(len(src))
	copy(dst, src)
	return dst
}

// Used returns the number of payload bytes handed out since the last Reset,
// including overflow blocks.
func (a *Allocator) Used() int {
	n := a.off
	for _, b := range a.overflow {
		n += len(b)
	}
	return n
}

// Overflowed reports whether any allocation missed the main buffer since
// the last Reset.
func (a *Allocator) Overflowed() bool {
	return len(a.overflow) > 0
}

// Reset invalidates every slice handed out so far and makes the full main
// buffer available again.
func (a *Allocator) Reset() {
	a.off = 0
	a.overflow = nil
}
