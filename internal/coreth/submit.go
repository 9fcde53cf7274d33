package coreth

import (
	"github.com/keelware/keel/internal/asyncop"
	"github.com/keelware/keel/internal/cmdqueue"
	"github.com/keelware/keel/internal/goid"
)

// Flags selects where a queued command goes and whether the caller waits.
type Flags uint8

const (
	// FlagStaged (the default) places the command on the calling
	// goroutine's private queue. Cheap, but invisible to the loop until a
	// later Submit.
	FlagStaged Flags = 0

	// FlagInternal bypasses staging and appends to the synchronized
	// internal queue: immediately visible to the loop at the cost of a
	// lock.
	FlagInternal Flags = 1 << 0

	// FlagBlock implies FlagInternal and additionally blocks the caller
	// until the command has executed on the core loop.
	FlagBlock Flags = 1 << 1
)

func (f Flags) internal() bool { return f&(FlagInternal|FlagBlock) != 0 }
func (f Flags) block() bool    { return f&FlagBlock != 0 }

// CallerQueue returns the calling goroutine's private staging queue,
// creating it on first touch. The registry lock is taken only for the
// lookup; subsequent enqueues on the returned queue are lock-free.
func (ct *CoreThread) CallerQueue() *cmdqueue.Queue {
	return ct.queueFor()
}

func (ct *CoreThread) queueFor() *cmdqueue.Queue {
	gid := goid.Current()
	ct.queuesMu.Lock()
	q, ok := ct.queues[gid]
	ct.queuesMu.Unlock()
	if ok {
		return q
	}

	var opts []cmdqueue.Option
	if !ct.checks {
		opts = append(opts, cmdqueue.WithoutChecks())
	}
	// New binds the queue to this (the calling) goroutine.
	q = cmdqueue.New(opts...)

	ct.queuesMu.Lock()
	ct.queues[gid] = q
	ct.queuesMu.Unlock()
	return q
}

// QueueCommand queues a void command per flags. With FlagStaged it lands on
// the caller's queue and needs a later Submit; with FlagInternal it is
// immediately visible to the loop; with FlagBlock the call returns only
// after the command has executed.
func (ct *CoreThread) QueueCommand(fn cmdqueue.Callback, flags Flags) {
	if !flags.internal() {
		ct.queueFor().Queue(fn)
		return
	}
	if flags.block() {
		id := ct.nextID.Add(1)
		ct.internal.QueueNotify(fn, id)
		ct.wake()
		ct.waitFor(id)
		return
	}
	ct.internal.Queue(fn)
	ct.wake()
}

// QueueReturnCommand queues a return command per flags and hands back its
// Op. With FlagBlock the Op is already resolved when the call returns.
func (ct *CoreThread) QueueReturnCommand(fn cmdqueue.ReturnCallback, flags Flags) *asyncop.Op {
	if !flags.internal() {
		return ct.queueFor().QueueReturn(fn)
	}
	if flags.block() {
		id := ct.nextID.Add(1)
		op := ct.internal.QueueReturnNotify(fn, id)
		ct.wake()
		ct.waitFor(id)
		return op
	}
	op := ct.internal.QueueReturn(fn)
	ct.wake()
	return op
}

// Submit flushes the calling goroutine's staged queue and appends the
// batch to the loop-visible inbox. With blockUntilComplete it returns only
// after every command in that batch has executed.
func (ct *CoreThread) Submit(blockUntilComplete bool) {
	ct.submitQueue(ct.queueFor(), blockUntilComplete)
}

// SubmitAll flushes every known per-caller queue in registration-stable
// order of discovery. Called once per simulation frame by the frame
// scheduler after producers have gone quiet; flushing a quiescent foreign
// queue is within the queue contract.
func (ct *CoreThread) SubmitAll(blockUntilComplete bool) {
	ct.queuesMu.Lock()
	all := make([]*cmdqueue.Queue, 0, len(ct.queues))
	for _, q := range ct.queues {
		all = append(all, q)
	}
	ct.queuesMu.Unlock()

	var ids []uint64
	for _, q := range all {
		if id, ok := ct.appendBatch(q, blockUntilComplete); ok {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		ct.waitFor(id)
	}
}

func (ct *CoreThread) submitQueue(q *cmdqueue.Queue, block bool) {
	id, ok := ct.appendBatch(q, block)
	if ok {
		ct.waitFor(id)
	}
}

// appendBatch flushes q into the inbox. When block is set and the batch is
// non-empty it returns a completion ID the caller must wait on.
func (ct *CoreThread) appendBatch(q *cmdqueue.Queue, block bool) (uint64, bool) {
	b := q.Flush()
	if b.Len() == 0 {
		q.Recycle(b)
		return 0, false
	}

	if block && ct.checks {
		if ct.OnCoreThread() {
			panic(&DeadlockError{Op: "Submit(block)"})
		}
		if ct.State() != StateRunning {
			panic(&StateError{Op: "Submit(block)", State: ct.State()})
		}
	}

	var id uint64
	if block {
		id = ct.nextID.Add(1)
	}
	ct.inboxMu.Lock()
	ct.inbox = append(ct.inbox, inboxEntry{batch: b, origin: q, doneID: id})
	ct.inboxMu.Unlock()
	ct.wake()
	return id, block
}
