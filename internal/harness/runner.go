package harness

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/keelware/keel/internal/coreth"
	"github.com/keelware/keel/internal/trace"
)

// DefaultSession is the trace token used when a scenario does not pin one.
const DefaultSession = "test-session-default"

// Result is the observable outcome of one scenario run.
type Result struct {
	// Trace holds every recorded event in driver order.
	Trace *trace.Recorder

	// Executed lists command labels in execution order on the core loop.
	Executed []string

	// Dropped counts commands removed by cancel steps.
	Dropped int

	// Frame is the frame counter after the final step.
	Frame uint64
}

// Runner executes scenarios.
type Runner struct {
	log *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a scenario runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenario against a fresh dispatcher and returns the
// recorded outcome. All steps run on the calling goroutine, so the staged
// queue the steps touch is always the caller's own.
func (r *Runner) Run(s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	session := s.Session
	if session == "" {
		session = DefaultSession
	}
	rec := trace.NewRecorder(session)
	res := &Result{Trace: rec}

	// Executed is appended from the core loop while the driver may be
	// reading Len on its own queue; the mutex covers only the slice.
	var mu sync.Mutex
	ran := func(label string) {
		rec.Record(trace.KindExecute, label)
		mu.Lock()
		res.Executed = append(res.Executed, label)
		mu.Unlock()
	}

	ct := coreth.New(coreth.WithLogger(r.log))
	if err := ct.StartUp(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	r.log.Debug("scenario started", "name", s.Name, "steps", len(s.Steps))

	for _, step := range s.Steps {
		switch {
		case step.Queue != nil:
			label := step.Queue.Label
			rec.Record(trace.KindEnqueue, label)
			fn := func() { ran(label) }
			if step.Queue.Block {
				// Executes before QueueCommand returns, so the execute
				// event lands here in the trace.
				ct.QueueCommand(fn, coreth.FlagBlock)
			} else {
				ct.QueueCommand(fn, coreth.FlagStaged)
			}

		case step.Submit != nil:
			rec.Record(trace.KindSubmit,
				fmt.Sprintf("pending=%d", ct.CallerQueue().Len()))
			// Always block: the execute events of this batch must precede
			// whatever the next step records.
			ct.Submit(true)

		case step.Update != nil:
			ct.Update()
			rec.Record(trace.KindFrame,
				fmt.Sprintf("frame=%d", ct.Frames().Frame()))

		case step.Cancel != nil:
			q := ct.CallerQueue()
			n := q.Len()
			q.CancelAll()
			res.Dropped += n
			rec.Record(trace.KindCancel, fmt.Sprintf("dropped=%d", n))
		}
	}

	if err := ct.Shutdown(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	res.Frame = ct.Frames().Frame()
	r.log.Debug("scenario finished",
		"name", s.Name, "executed", len(res.Executed), "dropped", res.Dropped)
	return res, nil
}
