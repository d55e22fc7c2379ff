package frame

import "sync"

// State is the lifecycle position of one relay instance.
type State int

const (
	Active State = iota
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a stream. Err is set only when State is
// Failed.
type Outcome struct {
	State State
	Err   error
}

// Terminal reports whether the outcome has been decided.
func (o Outcome) Terminal() bool {
	return o.State != Active
}

// OutcomeTracker records the transition out of Active. Only the first
// transition sticks; later ones report false and change nothing.
type OutcomeTracker struct {
	mu      sync.Mutex
	outcome Outcome
}

// Complete moves the tracker to Completed.
func (t *OutcomeTracker) Complete() bool {
	return t.transition(Outcome{State: Completed})
}

// Fail moves the tracker to Failed with reason err.
func (t *OutcomeTracker) Fail(err error) bool {
	return t.transition(Outcome{State: Failed, Err: err})
}

// Outcome returns the current outcome.
func (t *OutcomeTracker) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *OutcomeTracker) transition(o Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome.Terminal() {
		return false
	}
	t.outcome = o
	return true
}
