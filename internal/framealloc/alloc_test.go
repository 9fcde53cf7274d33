package framealloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_BumpAndReset(t *testing.T) {
	a := NewAllocator(64)

	p1 := a.Alloc(10)
	p2 := a.Alloc(10)
	require.Len(t, p1, 10)
	require.Len(t, p2, 10)
	assert.Equal(t, 32, a.Used(), "allocations advance by aligned size")

	copy(p1, "abcdefghij")
	assert.Equal(t, "abcdefghij", string(p1))

	a.Reset()
	assert.Equal(t, 0, a.Used())

	p3 := a.Alloc(10)
	assert.Equal(t, make([]byte, 10), p3, "recycled memory must be zeroed")
}

func TestAllocator_ZeroAndNegative(t *testing.T) {
	a := NewAllocator(16)

	p := a.Alloc(0)
	assert.NotNil(t, p)
	assert.Empty(t, p)

	assert.Panics(t, func() { a.Alloc(-1) })
}

func TestAllocator_Overflow(t *testing.T) {
	a := NewAllocator(16)

	big := a.Alloc(64)
	require.Len(t, big, 64)
	assert.True(t, a.Overflowed())
	assert.Equal(t, 64, a.Used())

	a.Reset()
	assert.False(t, a.Overflowed(), "overflow blocks dropped on reset")
}

func TestAllocator_Copy(t *testing.T) {
	a := NewAllocator(64)

	src := []byte{1, 2, 3, 4}
	dst := a.Copy(src)
	require.Equal(t, src, dst)

	// The staged snapshot must be independent of later source mutation.
	src[0] = 99
	assert.Equal(t, byte(1), dst[0])
}

func TestDoubleBuffer_SwapRoles(t *testing.T) {
	db := NewDoubleBuffer(64)

	w := db.Writer()
	r := db.Reader()
	require.NotSame(t, w, r)

	blob := w.Copy([]byte("frame-k"))

	// After the boundary swap, last frame's writer is this frame's reader
	// and its staged data is still intact.
	nw := db.Swap()
	assert.Same(t, w, db.Reader())
	assert.Same(t, nw, db.Writer())
	assert.Equal(t, "frame-k", string(blob))
	assert.Equal(t, uint64(1), db.Frame())
}

func TestDoubleBuffer_OneFrameAheadIsolation(t *testing.T) {
	db := NewDoubleBuffer(64)

	// Frame k: stage object A's snapshot.
	blobA := db.Writer().Copy([]byte{0xAA, 0xAA})
	db.Swap()

	// Frame k+1: stage object B before frame k's data is consumed.
	blobB := db.Writer().Copy([]byte{0xBB, 0xBB})

	assert.Equal(t, []byte{0xAA, 0xAA}, blobA, "pending generation must not be corrupted")
	assert.Equal(t, []byte{0xBB, 0xBB}, blobB)

	// Frame k+2 reuses generation k's buffer; only now is blobA invalid.
	db.Swap()
	fresh := db.Writer().Alloc(2)
	assert.Equal(t, []byte{0, 0}, fresh)
}
