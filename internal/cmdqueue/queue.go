package cmdqueue

import (
	"sync"

	"github.com/keelware/keel/internal/asyncop"
	"github.com/keelware/keel/internal/goid"
)

// Callback is a void deferred command.
type Callback func()

// ReturnCallback is a deferred command bound to an Op. It must resolve the
// Op exactly once; playback backstops a callback that returns without
// resolving by resolving the Op with a nil value.
type ReturnCallback func(*asyncop.Op)

// command is the tagged union stored in a queue: exactly one of run and
// runReturn is set.
type command struct {
	run        Callback
	runReturn  ReturnCallback
	op         *asyncop.Op
	notify     bool
	callbackID uint64
}

// Batch is a detached, owned sequence of commands produced by Flush and
// consumed by Playback. A batch is opaque apart from its length and the
// sequence number used by breakpoints.
type Batch struct {
	seq  uint64
	cmds []command
}

// Len returns the number of commands in the batch.
func (b *Batch) Len() int {
	return len(b.cmds)
}

// Seq returns the batch's flush sequence number on its origin queue.
func (b *Batch) Seq() uint64 {
	return b.seq
}

// Queue is an ordered list of deferred commands with a construction-time
// synchronization policy.
type Queue struct {
	mu     sync.Mutex
	shared bool  // mutex policy when true
	checks bool  // owner assertions on the unlocked policy
	owner  int64 // owning goroutine for the unlocked policy

	pending  []command
	flushSeq uint64

	// The batch pool crosses the policy boundary: Flush runs on the
	// producer side while Recycle runs wherever playback happened, so the
	// pool carries its own lock regardless of policy.
	poolMu sync.Mutex
	free   []*Batch

	bpMu        sync.Mutex
	breakpoints map[Breakpoint]struct{}
	onBreak     func(Breakpoint)
}

// Option configures a Queue at construction.
type Option func(*Queue)

// Shared selects the mutex policy, allowing enqueue from any goroutine.
func Shared() Option {
	return func(q *Queue) { q.shared = true }
}

// WithoutChecks disables owner assertions on an unlocked queue. This is
// the release-mode fast path; cross-goroutine misuse is then undefined.
func WithoutChecks() Option {
	return func(q *Queue) { q.checks = false }
}

// WithBreakpointHook installs the hook invoked when playback reaches a
// command registered via SetBreakpoint.
func WithBreakpointHook(hook func(Breakpoint)) Option {
	return func(q *Queue) { q.onBreak = hook }
}

// New creates a queue. The default policy is unlocked with owner checks
// enabled, bound to the constructing goroutine.
func New(opts ...Option) *Queue {
	q := &Queue{checks: true}
	for _, opt := range opts {
		opt(q)
	}
	if !q.shared {
		q.owner = goid.Current()
	}
	return q
}

// guard acquires the policy's protection for the named operation.
func (q *Queue) guard(op string) {
	if q.shared {
		q.mu.Lock()
		return
	}
	if q.checks {
		if caller := goid.Current(); caller != q.owner {
			panic(&AffinityError{Op: op, Owner: q.owner, Caller: caller})
		}
	}
}

func (q *Queue) unguard() {
	if q.shared {
		q.mu.Unlock()
	}
}

// Queue appends a void command. No side effect beyond enqueuing.
func (q *Queue) Queue(fn Callback) {
	q.append(command{run: fn})
}

// QueueNotify appends a void command whose completion is reported to
// PlaybackNotify's callback under the given ID.
func (q *Queue) QueueNotify(fn Callback, callbackID uint64) {
	q.append(command{run: fn, notify: true, callbackID: callbackID})
}

// QueueReturn appends a return command and hands back its (unresolved) Op.
func (q *Queue) QueueReturn(fn ReturnCallback) *asyncop.Op {
	op := asyncop.New()
	q.append(command{runReturn: fn, op: op})
	return op
}

// QueueReturnNotify combines QueueReturn and QueueNotify.
func (q *Queue) QueueReturnNotify(fn ReturnCallback, callbackID uint64) *asyncop.Op {
	op := asyncop.New()
	q.append(command{runReturn: fn, op: op, notify: true, callbackID: callbackID})
	return op
}

func (q *Queue) append(c command) {
	q.guard("queue")
	defer q.unguard()
	q.pending = append(q.pending, c)
}

// Flush atomically detaches the full pending sequence as a batch and
// leaves the queue empty. Flushing an empty queue returns an empty batch.
func (q *Queue) Flush() *Batch {
	q.poolMu.Lock()
	var b *Batch
	if n := len(q.free); n > 0 {
		b = q.free[n-1]
		q.free[n-1] = nil
		q.free = q.free[:n-1]
	} else {
		b = &Batch{}
	}
	q.poolMu.Unlock()

	// Flush carries no owner assertion: the frame scheduler legitimately
	// flushes caller-owned queues at the frame boundary (SubmitAll). The
	// contract is that flush is never concurrent with enqueue on an
	// unlocked queue; the mutex policy lifts that restriction.
	if q.shared {
		q.mu.Lock()
	}
	defer q.unguard()

	q.flushSeq++
	b.seq = q.flushSeq
	b.cmds, q.pending = q.pending, b.cmds[:0]
	return b
}

// Recycle clears an executed batch and returns it to the queue's pool.
// Safe from any goroutine; the dispatcher recycles from the core loop.
func (q *Queue) Recycle(b *Batch) {
	// Nil out command slots so executed closures (and whatever they
	// captured) become collectable while the batch sits in the pool.
	clear(b.cmds)
	b.cmds = b.cmds[:0]

	q.poolMu.Lock()
	q.free = append(q.free, b)
	q.poolMu.Unlock()
}

// CancelAll discards every pending, not-yet-flushed command without
// executing it. Ops bound to discarded commands are resolved as cancelled.
// Calling CancelAll on an empty queue is a no-op.
func (q *Queue) CancelAll() {
	q.guard("cancelAll")
	defer q.unguard()

	for i := range q.pending {
		if op := q.pending[i].op; op != nil {
			op.Cancel()
		}
	}
	clear(q.pending)
	q.pending = q.pending[:0]
}

// IsEmpty reports whether the queue has no pending commands.
func (q *Queue) IsEmpty() bool {
	q.guard("isEmpty")
	defer q.unguard()
	return len(q.pending) == 0
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.guard("len")
	defer q.unguard()
	return len(q.pending)
}

// Playback executes every command in the batch in FIFO order.
func (q *Queue) Playback(b *Batch) {
	q.PlaybackNotify(b, nil)
}

// PlaybackNotify executes every command in FIFO order and, for commands
// queued with a notify ID, invokes notify(callbackID) immediately after —
// never before — that command has executed, exactly once per command.
func (q *Queue) PlaybackNotify(b *Batch, notify func(callbackID uint64)) {
	for i := range b.cmds {
		q.hitBreakpoint(Breakpoint{Batch: b.seq, Index: i})

		c := &b.cmds[i]
		switch {
		case c.runReturn != nil:
			c.runReturn(c.op)
			// A return callback that failed to resolve its Op resolves
			// implicitly with a nil value.
			c.op.Resolve(nil)
		case c.run != nil:
			c.run()
		}
		if c.notify && notify != nil {
			notify(c.callbackID)
		}
	}
}
