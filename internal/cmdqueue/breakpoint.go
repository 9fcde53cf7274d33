package cmdqueue

// Breakpoint names one playback step on one queue: the Batch'th flush, the
// Index'th command within it. A developer chasing "which enqueue site
// produced this command" registers the pair and gets a deterministic hook
// call when playback reaches it.
type Breakpoint struct {
	Batch uint64
	Index int
}

// SetBreakpoint registers a breakpoint. It fires on every playback that
// reaches the position until cleared. The breakpoint set has its own lock
// because registration happens on the producer side while playback — and
// therefore the lookup — runs on the consumer side.
func (q *Queue) SetBreakpoint(bp Breakpoint) {
	q.bpMu.Lock()
	defer q.bpMu.Unlock()
	if q.breakpoints == nil {
		q.breakpoints = make(map[Breakpoint]struct{})
	}
	q.breakpoints[bp] = struct{}{}
}

// ClearBreakpoint removes a previously registered breakpoint.
func (q *Queue) ClearBreakpoint(bp Breakpoint) {
	q.bpMu.Lock()
	defer q.bpMu.Unlock()
	delete(q.breakpoints, bp)
}

func (q *Queue) hitBreakpoint(bp Breakpoint) {
	if q.onBreak == nil {
		return
	}
	q.bpMu.Lock()
	_, hit := q.breakpoints[bp]
	q.bpMu.Unlock()
	if hit {
		q.onBreak(bp)
	}
}
