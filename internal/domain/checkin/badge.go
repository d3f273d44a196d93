package checkin

import "fmt"

// Badge print job states. Transitions are monotonic except the
// operator-triggered failed -> pending retry.
const (
	JobPending   = "pending"
	JobPrinting  = "printing"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

var allowedJobTransitions = map[string]map[string]struct{}{
	JobPending:  {JobPrinting: {}},
	JobPrinting: {JobCompleted: {}, JobFailed: {}},
	// No automatic retry: failed -> pending only through the operator path.
	JobFailed:    {JobPending: {}},
	JobCompleted: {},
}

func ValidJobStatus(status string) bool {
	_, ok := allowedJobTransitions[status]
	return ok
}

// CheckJobTransition validates a badge job state change.
func CheckJobTransition(from string, to string) error {
	next, ok := allowedJobTransitions[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, from, to)
	}
	return nil
}
