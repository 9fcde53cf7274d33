// Package framealloc implements the frame-scoped linear allocator used to
// stage sync snapshots between the simulation side and the core loop.
//
// An Allocator hands out 8-byte-aligned slices from one pre-allocated
// buffer and frees everything at once on Reset. A DoubleBuffer pairs two
// generations: while the core loop consumes generation k, the simulation
// side stages the next frame's snapshots into generation k+1. The
// simulation side may run at most one frame ahead; Swap at each frame
// boundary is what enforces that bound.
package framealloc
