package dispatcher

// State is a step of the per-request state machine. Every request ends in
// exactly one of StateResponded or StateError.
type State int

const (
	StateReceived State = iota
	StateParameterResolution
	StateInvoking
	StateResultNormalization
	StateResponded
	StateError
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateParameterResolution:
		return "PARAMETER_RESOLUTION"
	case StateInvoking:
		return "INVOKING"
	case StateResultNormalization:
		return "RESULT_NORMALIZATION"
	case StateResponded:
		return "RESPONDED"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateResponded || s == StateError
}

var transitions = map[State]State{
	StateReceived:            StateParameterResolution,
	StateParameterResolution: StateInvoking,
	StateInvoking:            StateResultNormalization,
	StateResultNormalization: StateResponded,
}

// next reports whether to is a legal successor of s.
func (s State) next(to State) bool {
	if s.Terminal() {
		return false
	}
	return to == StateError || transitions[s] == to
}
