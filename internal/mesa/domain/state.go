package domain

// State is the lifecycle of a mesa on election day. It only moves forward.
type State string

const (
	StateWaiting State = "WAITING"
	StateOpen    State = "OPEN"
	StateClosed  State = "CLOSED"
	StateTallied State = "TALLIED"
)

var stateOrder = []State{StateWaiting, StateOpen, StateClosed, StateTallied}

func (s State) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the position of the state in the lifecycle, or -1 when unknown.
func (s State) Rank() int {
	for i, candidate := range stateOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Next returns the following state. TALLIED is terminal and maps to itself.
func (s State) Next() State {
	rank := s.Rank()
	if rank < 0 {
		return StateWaiting
	}
	if rank == len(stateOrder)-1 {
		return s
	}
	return stateOrder[rank+1]
}

func (s State) Terminal() bool {
	return s == StateTallied
}

func (s State) String() string {
	return string(s)
}
