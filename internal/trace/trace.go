package trace

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Kind categorizes a trace event.
type Kind string

const (
	// KindEnqueue marks a command staged on a queue.
	KindEnqueue Kind = "enqueue"
	// KindSubmit marks a batch made visible to the core loop.
	KindSubmit Kind = "submit"
	// KindExecute marks a command executed on the core loop.
	KindExecute Kind = "execute"
	// KindNotify marks a completion notification.
	KindNotify Kind = "notify"
	// KindFrame marks a frame-boundary update.
	KindFrame Kind = "frame"
	// KindSync marks a manager sync pass.
	KindSync Kind = "sync"
	// KindCancel marks a cancelled pending batch.
	KindCancel Kind = "cancel"
)

// Event is one recorded step.
type Event struct {
	Seq   int64
	Kind  Kind
	Label string
}

// Recorder collects events for one session.
//
// Thread-safety: Record may be called from any goroutine; the sim side and
// the core loop interleave freely. Ordering is whatever the lock serialized,
// which for single-producer deterministic scenarios is the program order.
type Recorder struct {
	session string

	mu     sync.Mutex
	seq    int64
	events []Event
}

// NewRecorder creates a recorder stamped with a session token (typically a
// UUIDv7 in production, a fixed token under test).
func NewRecorder(session string) *Recorder {
	return &Recorder{session: session}
}

// Session returns the session token.
func (r *Recorder) Session() string {
	return r.session
}

// Record appends one event and returns its sequence number.
func (r *Recorder) Record(kind Kind, label string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, Event{Seq: r.seq, Kind: kind, Label: label})
	return r.seq
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Canonical serializes the trace as deterministic line-oriented text:
//
//	session <token>
//	<seq> <kind> <label>
//
// Labels are NFC-normalized so equivalent Unicode spellings canonicalize
// identically.
func (r *Recorder) Canonical() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "session %s\n", norm.NFC.String(r.session))
	for _, e := range r.events {
		fmt.Fprintf(&buf, "%d %s %s\n", e.Seq, e.Kind, norm.NFC.String(e.Label))
	}
	return buf.Bytes()
}
