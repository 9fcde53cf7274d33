package cmdqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelware/keel/internal/asyncop"
)

func TestQueue_FIFO(t *testing.T) {
	q := New()

	var got []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		q.Queue(func() { got = append(got, name) })
	}

	b := q.Flush()
	require.Equal(t, 3, b.Len())
	assert.True(t, q.IsEmpty(), "queue is empty after flush, before playback")

	q.Playback(b)
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestQueue_FlushEmpty(t *testing.T) {
	q := New()

	b := q.Flush()
	require.NotNil(t, b)
	assert.Zero(t, b.Len())
	q.Playback(b) // no-op
}

func TestQueue_EnqueueHasNoSideEffect(t *testing.T) {
	q := New()

	ran := false
	q.Queue(func() { ran = true })
	assert.False(t, ran, "queuing must not execute the command")
	assert.False(t, q.IsEmpty())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_QueueReturn(t *testing.T) {
	q := New()

	op := q.QueueReturn(func(op *asyncop.Op) {
		op.Resolve("result")
	})
	require.False(t, op.IsResolved(), "op is unresolved until playback")

	q.Playback(q.Flush())

	require.True(t, op.IsResolved())
	v, err := op.Value()
	require.NoError(t, err)
	assert.Equal(t, "result", v)
}

func TestQueue_ReturnCallbackBackstop(t *testing.T) {
	q := New()

	// A return callback that forgets to resolve still leaves the op
	// resolved (with a nil value) after playback.
	op := q.QueueReturn(func(*asyncop.Op) {})
	q.Playback(q.Flush())

	require.True(t, op.IsResolved())
	v, err := op.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestQueue_PlaybackNotify_AfterExecutionOnce(t *testing.T) {
	q := New()

	var order []string
	q.QueueNotify(func() { order = append(order, "exec-1") }, 11)
	q.Queue(func() { order = append(order, "exec-2") })
	q.QueueNotify(func() { order = append(order, "exec-3") }, 13)

	var notified []uint64
	q.PlaybackNotify(q.Flush(), func(id uint64) {
		order = append(order, "notify")
		notified = append(notified, id)
	})

	assert.Equal(t, []string{"exec-1", "notify", "exec-2", "exec-3", "notify"}, order,
		"notify fires immediately after its command, never before")
	assert.Equal(t, []uint64{11, 13}, notified)
}

func TestQueue_CancelAll(t *testing.T) {
	q := New()

	ran := false
	q.Queue(func() { ran = true })
	op := q.QueueReturn(func(op *asyncop.Op) { op.Resolve(1) })

	q.CancelAll()

	assert.True(t, q.IsEmpty())
	assert.False(t, ran, "cancelled commands never execute")
	assert.ErrorIs(t, op.Err(), asyncop.ErrCancelled,
		"ops bound to cancelled commands resolve as cancelled")
}

func TestQueue_CancelAll_EmptyIsNoop(t *testing.T) {
	q := New()

	require.True(t, q.IsEmpty())
	q.CancelAll()
	assert.True(t, q.IsEmpty())
}

func TestQueue_BatchPoolReuse(t *testing.T) {
	q := New()

	q.Queue(func() {})
	b1 := q.Flush()
	q.Playback(b1)
	q.Recycle(b1)

	q.Queue(func() {})
	b2 := q.Flush()
	assert.Same(t, b1, b2, "flush reuses recycled batches")
	assert.Equal(t, uint64(2), b2.Seq())
}

func TestQueue_SharedPolicyConcurrentEnqueue(t *testing.T) {
	q := New(Shared())

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	executed := 0
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Queue(func() {
					mu.Lock()
					executed++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	q.Playback(q.Flush())
	assert.Equal(t, producers*perProducer, executed)
}

func TestQueue_AffinityViolationPanics(t *testing.T) {
	q := New() // unlocked, owned by this goroutine, checks on

	panicked := make(chan any, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { panicked <- recover() }()
		q.Queue(func() {})
	}()
	wg.Wait()

	v := <-panicked
	require.NotNil(t, v, "foreign-goroutine enqueue must panic")
	ae, ok := v.(*AffinityError)
	require.True(t, ok, "panic value is an AffinityError")
	assert.Equal(t, "queue", ae.Op)
	assert.True(t, IsAffinityError(ae))
	assert.NotEqual(t, ae.Owner, ae.Caller)
}

func TestQueue_WithoutChecksSkipsAssertion(t *testing.T) {
	q := New(WithoutChecks())

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Queue(func() {}) // would panic with checks on
	}()
	<-done
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Breakpoint(t *testing.T) {
	var hits []Breakpoint
	q := New(WithBreakpointHook(func(bp Breakpoint) { hits = append(hits, bp) }))

	q.Queue(func() {})
	q.Queue(func() {})
	q.SetBreakpoint(Breakpoint{Batch: 1, Index: 1})

	q.Playback(q.Flush())
	require.Len(t, hits, 1, "only the registered step fires")
	assert.Equal(t, Breakpoint{Batch: 1, Index: 1}, hits[0])

	// Second batch has seq 2; the old breakpoint does not fire.
	q.Queue(func() {})
	q.Queue(func() {})
	q.Playback(q.Flush())
	assert.Len(t, hits, 1)
}
