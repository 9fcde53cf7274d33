package coreth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelware/keel/internal/asyncop"
	"github.com/keelware/keel/internal/cmdqueue"
)

func newRunning(t *testing.T, opts ...Option) *CoreThread {
	t.Helper()
	ct := New(opts...)
	require.NoError(t, ct.StartUp())
	t.Cleanup(func() {
		if ct.State() == StateRunning {
			require.NoError(t, ct.Shutdown())
		}
	})
	return ct
}

func TestCoreThread_Lifecycle(t *testing.T) {
	ct := New()
	assert.Equal(t, StateIdle, ct.State())

	require.NoError(t, ct.StartUp())
	assert.Equal(t, StateRunning, ct.State())

	err := ct.StartUp()
	require.Error(t, err, "double start is a state error")
	assert.True(t, IsStateError(err))

	require.NoError(t, ct.Shutdown())
	assert.Equal(t, StateStopped, ct.State())

	err = ct.Shutdown()
	require.Error(t, err, "double shutdown is a state error")
	assert.True(t, IsStateError(err))
}

func TestCoreThread_StagedCommandsNeedSubmit(t *testing.T) {
	ct := newRunning(t)

	ran := make(chan struct{}, 1)
	ct.QueueCommand(func() { ran <- struct{}{} }, FlagStaged)

	select {
	case <-ran:
		t.Fatal("staged command executed without submit")
	case <-time.After(20 * time.Millisecond):
	}

	ct.Submit(true)
	select {
	case <-ran:
	default:
		t.Fatal("command did not execute after blocking submit")
	}
}

func TestCoreThread_SubmitPreservesFIFO(t *testing.T) {
	ct := newRunning(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		ct.QueueCommand(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}, FlagStaged)
	}
	ct.Submit(true)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v, "per-caller batches execute in enqueue order")
	}
}

func TestCoreThread_BlockingSubmitWaits(t *testing.T) {
	ct := newRunning(t)

	const nap = 50 * time.Millisecond
	done := false
	ct.QueueCommand(func() {
		time.Sleep(nap)
		done = true
	}, FlagStaged)

	start := time.Now()
	ct.Submit(true)
	elapsed := time.Since(start)

	assert.True(t, done, "submit(block) returns only after the command completed")
	assert.GreaterOrEqual(t, elapsed, nap)
}

func TestCoreThread_InternalFlagRunsWithoutSubmit(t *testing.T) {
	ct := newRunning(t)

	ran := make(chan struct{})
	ct.QueueCommand(func() { close(ran) }, FlagInternal)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("internal command never executed")
	}
}

func TestCoreThread_BlockFlag(t *testing.T) {
	ct := newRunning(t)

	executed := false
	op := ct.QueueReturnCommand(func(op *asyncop.Op) {
		executed = true
		op.Resolve("ok")
	}, FlagBlock)

	assert.True(t, executed)
	require.True(t, op.IsResolved(), "FlagBlock returns a resolved op")
	v, err := op.Value()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCoreThread_QueueReturnCommandStaged(t *testing.T) {
	ct := newRunning(t)

	op := ct.QueueReturnCommand(func(op *asyncop.Op) { op.Resolve(99) }, FlagStaged)
	require.False(t, op.IsResolved())

	ct.Submit(true)
	v, ok := asyncop.ValueAs[int](op)
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestCoreThread_ShutdownDrains(t *testing.T) {
	ct := New()
	require.NoError(t, ct.StartUp())

	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		ct.QueueCommand(func() {
			mu.Lock()
			count++
			mu.Unlock()
		}, FlagStaged)
	}
	ct.Submit(false) // visible but possibly not yet executed

	require.NoError(t, ct.Shutdown())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count, "everything visible at shutdown executes before exit")
}

func TestCoreThread_SubmitAll(t *testing.T) {
	ct := newRunning(t)

	var mu sync.Mutex
	count := 0
	bump := func() {
		mu.Lock()
		count++
		mu.Unlock()
	}

	// Three producer goroutines stage without submitting.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ct.QueueCommand(bump, FlagStaged)
			}
		}()
	}
	wg.Wait()

	// The frame scheduler flushes everyone.
	ct.SubmitAll(true)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 30, count)
}

func TestCoreThread_PerCallerQueueIdentity(t *testing.T) {
	ct := newRunning(t)

	q1 := ct.CallerQueue()
	q2 := ct.CallerQueue()
	assert.Same(t, q1, q2, "same goroutine gets the same staging queue")

	var other *cmdqueue.Queue
	done := make(chan struct{})
	go func() {
		defer close(done)
		other = ct.CallerQueue()
	}()
	<-done
	assert.NotSame(t, q1, other, "each goroutine gets its own staging queue")
}

func TestCoreThread_OnCoreThread(t *testing.T) {
	ct := newRunning(t)

	assert.False(t, ct.OnCoreThread())

	op := ct.QueueReturnCommand(func(op *asyncop.Op) {
		op.Resolve(ct.OnCoreThread())
	}, FlagBlock)
	v, ok := asyncop.ValueAs[bool](op)
	require.True(t, ok)
	assert.True(t, v, "commands observe themselves on the core loop")
}

func TestCoreThread_UpdateAdvancesFrame(t *testing.T) {
	ct := newRunning(t)

	w0 := ct.Frames().Writer()
	ct.Update()
	assert.Same(t, w0, ct.Frames().Reader(), "update swaps writer to reader")
	assert.Equal(t, uint64(1), ct.Frames().Frame())
}

func TestCoreThread_Stats(t *testing.T) {
	ct := newRunning(t)

	for i := 0; i < 5; i++ {
		ct.QueueCommand(func() {}, FlagStaged)
	}
	ct.Submit(true)

	executed, batches := ct.Stats()
	assert.Equal(t, uint64(5), executed)
	assert.Equal(t, uint64(1), batches)
}

func TestCoreThread_BlockingFromCoreLoopPanics(t *testing.T) {
	ct := newRunning(t)

	op := ct.QueueReturnCommand(func(op *asyncop.Op) {
		defer func() { op.Resolve(recover()) }()
		// Blocking inside a command running on the core loop can never
		// complete; checks turn the self-deadlock into a panic.
		ct.QueueCommand(func() {}, FlagBlock)
	}, FlagBlock)

	v, err := op.Value()
	require.NoError(t, err)
	require.NotNil(t, v, "expected a deadlock panic")
	_, ok := v.(*DeadlockError)
	assert.True(t, ok, "panic value is a DeadlockError, got %T", v)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
