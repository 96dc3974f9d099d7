package routing

import "fmt"

// State is a phase of the orchestration state machine.
type State string

const (
	StateCacheCheck       State = "cache-check"
	StateBudgetCheck      State = "budget-check"
	StateServiceSelection State = "service-selection"
	StateDispatch         State = "dispatch"
	StateSynthesis        State = "synthesis"
	StateComplete         State = "complete"
	StateDegraded         State = "degraded"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateDegraded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Followers of an in-flight analysis jump from CacheCheck to the leader's
// terminal state.
//
//nolint:gochecknoglobals // immutable transition table
var transitions = map[State][]State{
	"":                    {StateCacheCheck},
	StateCacheCheck:       {StateBudgetCheck, StateComplete, StateDegraded, StateFailed, StateCancelled},
	StateBudgetCheck:      {StateServiceSelection, StateCancelled},
	StateServiceSelection: {StateDispatch, StateCancelled},
	StateDispatch:         {StateSynthesis, StateFailed, StateCancelled},
	StateSynthesis:        {StateComplete, StateDegraded, StateCancelled},
}

// ErrIllegalTransition reports a transition missing from the table.
type ErrIllegalTransition struct {
	From State
	To   State
}

func (e *ErrIllegalTransition) Error() string {
	from := e.From
	if from == "" {
		from = "start"
	}
	return fmt.Sprintf("illegal transition %s -> %s", from, e.To)
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
