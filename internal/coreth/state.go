package coreth

import (
	"errors"
	"fmt"
)

// State is the dispatcher lifecycle state.
type State int32

const (
	// StateIdle is the initial state: no loop goroutine exists yet.
	StateIdle State = iota
	// StateRunning means the loop goroutine is executing commands.
	StateRunning
	// StateStopping means shutdown has begun; the loop is draining.
	StateStopping
	// StateStopped means the loop goroutine has exited.
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// StateError reports an operation attempted in the wrong lifecycle state,
// such as StartUp on a dispatcher that is already running.
type StateError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("coreth: %s while dispatcher is %s", e.Op, e.State)
}

// IsStateError reports whether err (possibly wrapped) is a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// DeadlockError reports a sanctioned blocking call issued from the core
// loop itself, which can never complete. Raised as a panic when checks are
// enabled.
type DeadlockError struct {
	Op string
}

// Error implements the error interface.
func (e *DeadlockError) Error() string {
	return fmt.Sprintf("coreth: %s would block the core loop on itself", e.Op)
}
