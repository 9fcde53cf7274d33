package cmdqueue

import (
	"errors"
	"fmt"
)

// AffinityError reports an unlocked queue touched from a goroutine other
// than its owner. Raised (as a panic) only when owner checks are enabled;
// with checks disabled the unlocked policy is a documented unsafe fast
// path and misuse is undefined.
type AffinityError struct {
	// Op names the queue operation that detected the violation.
	Op string

	// Owner is the goroutine ID the queue is bound to.
	Owner int64

	// Caller is the goroutine ID that made the offending call.
	Caller int64
}

// Error implements the error interface.
func (e *AffinityError) Error() string {
	return fmt.Sprintf("cmdqueue: %s called from goroutine %d, queue owned by goroutine %d",
		e.Op, e.Caller, e.Owner)
}

// IsAffinityError reports whether err (possibly wrapped) is an
// AffinityError.
func IsAffinityError(err error) bool {
	var ae *AffinityError
	return errors.As(err, &ae)
}
