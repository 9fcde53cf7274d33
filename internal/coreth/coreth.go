package coreth

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/keelware/keel/internal/cmdqueue"
	"github.com/keelware/keel/internal/framealloc"
	"github.com/keelware/keel/internal/goid"
)

// inboxEntry is one flushed batch awaiting playback, paired with the queue
// it was flushed from so the empty batch can be recycled back to its pool.
type inboxEntry struct {
	batch  *cmdqueue.Batch
	origin *cmdqueue.Queue
	doneID uint64 // nonzero when a blocking Submit waits on this batch
}

// CoreThread is the dispatcher that owns the core loop goroutine.
//
// Thread-safety model:
//   - StartUp/Shutdown: called by the owning (application) goroutine
//   - QueueCommand/QueueReturnCommand/Submit: safe from any goroutine;
//     staged submissions touch only the caller's own queue
//   - Update: called once per simulation frame by the frame scheduler
type CoreThread struct {
	log    *slog.Logger
	checks bool

	state   atomic.Int32
	started chan struct{}
	wg      sync.WaitGroup
	coreGID atomic.Int64

	// signal coalesces wake-ups for the loop (buffered, size 1).
	signal chan struct{}

	// inbox holds flushed batches in submission order.
	inboxMu sync.Mutex
	inbox   []inboxEntry

	// internal is the one queue fed from multiple goroutines (FlagInternal
	// path); the loop flushes it ahead of the inbox each pass.
	internal *cmdqueue.Queue

	// queues maps caller goroutine ID to its private staging queue.
	queuesMu sync.Mutex
	queues   map[int64]*cmdqueue.Queue

	// completed IDs of notify commands, for blocking waiters.
	doneMu    sync.Mutex
	doneCond  *sync.Cond
	completed map[uint64]struct{}
	nextID    atomic.Uint64

	frames *framealloc.DoubleBuffer

	// stats consumed by the profiler capture, all loop-side counters.
	executed atomic.Uint64
	batches  atomic.Uint64
}

// Option configures a CoreThread at construction.
type Option func(*CoreThread)

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(ct *CoreThread) { ct.log = log }
}

// WithoutChecks disables affinity and self-deadlock assertions. Misuse of
// the staged queues or blocking calls is then undefined.
func WithoutChecks() Option {
	return func(ct *CoreThread) { ct.checks = false }
}

// WithFrameArena sets the per-generation frame allocator capacity in bytes.
func WithFrameArena(capacity int) Option {
	return func(ct *CoreThread) { ct.frames = framealloc.NewDoubleBuffer(capacity) }
}

// New creates a dispatcher in StateIdle. The loop goroutine does not exist
// until StartUp.
func New(opts ...Option) *CoreThread {
	ct := &CoreThread{
		log:       slog.Default(),
		checks:    true,
		started:   make(chan struct{}),
		signal:    make(chan struct{}, 1),
		internal:  cmdqueue.New(cmdqueue.Shared()),
		queues:    make(map[int64]*cmdqueue.Queue),
		completed: make(map[uint64]struct{}),
		frames:    framealloc.NewDoubleBuffer(framealloc.DefaultCapacity),
	}
	ct.doneCond = sync.NewCond(&ct.doneMu)
	for _, opt := range opts {
		opt(ct)
	}
	return ct
}

// State returns the current lifecycle state.
func (ct *CoreThread) State() State {
	return State(ct.state.Load())
}

// OnCoreThread reports whether the caller is the core loop goroutine.
func (ct *CoreThread) OnCoreThread() bool {
	gid := ct.coreGID.Load()
	return gid != 0 && gid == goid.Current()
}

// Frames returns the double-buffered frame allocator owned by the
// dispatcher. The simulation side stages snapshots into Frames().Writer().
func (ct *CoreThread) Frames() *framealloc.DoubleBuffer {
	return ct.frames
}

// Update advances the double buffer one generation. Called exactly once
// per simulation frame, at the frame boundary, before further core-bound
// work is queued for the new frame.
func (ct *CoreThread) Update() {
	if ct.checks && ct.OnCoreThread() {
		panic(&DeadlockError{Op: "Update"})
	}
	ct.frames.Swap()
}

// StartUp spawns the core loop and blocks until it has signalled the
// idle-to-running transition.
func (ct *CoreThread) StartUp() error {
	if !ct.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return &StateError{Op: "StartUp", State: ct.State()}
	}

	ct.wg.Add(1)
	go ct.run()
	<-ct.started

	ct.log.Debug("core loop started", "goroutine", ct.coreGID.Load())
	return nil
}

// Shutdown begins the graceful drain and joins the loop goroutine. Every
// command already visible to the loop — submitted batches and internal
// queue entries — executes before the loop exits; nothing is dropped.
// Commands still sitting on staged per-caller queues were never submitted
// and are simply not flushed.
func (ct *CoreThread) Shutdown() error {
	if !ct.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return &StateError{Op: "Shutdown", State: ct.State()}
	}
	if ct.checks && ct.OnCoreThread() {
		panic(&DeadlockError{Op: "Shutdown"})
	}

	ct.wake()
	ct.wg.Wait()
	ct.state.Store(int32(StateStopped))
	ct.log.Debug("core loop stopped",
		"executed", ct.executed.Load(), "batches", ct.batches.Load())
	return nil
}

// wake nudges the loop; the buffered channel coalesces bursts.
func (ct *CoreThread) wake() {
	select {
	case ct.signal <- struct{}{}:
	default:
	}
}

// run is the core loop body. It alternates between draining everything
// visible and sleeping on the signal channel.
func (ct *CoreThread) run() {
	defer ct.wg.Done()

	ct.coreGID.Store(goid.Current())
	close(ct.started)

	for {
		drained := ct.drain()

		if ct.State() == StateStopping && drained {
			// Re-check after observing the stop flag: a submit racing
			// with shutdown may have made one more batch visible.
			if ct.drain() {
				return
			}
		}
		if drained {
			<-ct.signal
		}
	}
}

// drain executes everything currently visible to the loop and reports
// whether it left both the internal queue and the inbox empty.
func (ct *CoreThread) drain() bool {
	// Internal-immediate commands first: they were promised immediate
	// visibility, so they never wait behind staged batches.
	if !ct.internal.IsEmpty() {
		b := ct.internal.Flush()
		ct.playback(ct.internal, b)
		ct.internal.Recycle(b)
	}

	for {
		ct.inboxMu.Lock()
		if len(ct.inbox) == 0 {
			ct.inboxMu.Unlock()
			break
		}
		entry := ct.inbox[0]
		ct.inbox[0] = inboxEntry{}
		ct.inbox = ct.inbox[1:]
		ct.inboxMu.Unlock()

		ct.playback(entry.origin, entry.batch)
		entry.origin.Recycle(entry.batch)
		if entry.doneID != 0 {
			ct.markCompleted(entry.doneID)
		}
	}

	ct.inboxMu.Lock()
	inboxEmpty := len(ct.inbox) == 0
	ct.inboxMu.Unlock()
	return inboxEmpty && ct.internal.IsEmpty()
}

func (ct *CoreThread) playback(origin *cmdqueue.Queue, b *cmdqueue.Batch) {
	if b.Len() == 0 {
		return
	}
	origin.PlaybackNotify(b, ct.markCompleted)
	ct.executed.Add(uint64(b.Len()))
	ct.batches.Add(1)
}

// markCompleted records a finished notify command and wakes blockers.
func (ct *CoreThread) markCompleted(id uint64) {
	ct.doneMu.Lock()
	ct.completed[id] = struct{}{}
	ct.doneMu.Unlock()
	ct.doneCond.Broadcast()
}

// waitFor blocks until the command carrying id has executed, then forgets
// the id.
func (ct *CoreThread) waitFor(id uint64) {
	if ct.checks && ct.OnCoreThread() {
		panic(&DeadlockError{Op: "blocking wait"})
	}
	ct.doneMu.Lock()
	defer ct.doneMu.Unlock()
	for {
		if _, ok := ct.completed[id]; ok {
			delete(ct.completed, id)
			return
		}
		ct.doneCond.Wait()
	}
}

// Stats returns loop-side counters: commands executed and batches played
// back since StartUp.
func (ct *CoreThread) Stats() (executed, batches uint64) {
	return ct.executed.Load(), ct.batches.Load()
}
