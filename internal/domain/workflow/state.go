package workflow

// State represents the status of a reimbursement claim
type State string

const (
	StateDraft           State = "DRAFT"
	StatePendingManager  State = "PENDING_MANAGER"
	StatePendingFinance  State = "PENDING_FINANCE"
	StateApproved        State = "APPROVED"
	StateRejectedManager State = "REJECTED_MANAGER"
	StateRejectedFinance State = "REJECTED_FINANCE"
	StatePaid            State = "PAID"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StatePendingManager:  true,
	StatePendingFinance:  true,
	StateApproved:        true,
	StateRejectedManager: true,
	StateRejectedFinance: true,
	StatePaid:            true,
}

// A rejected or paid claim is frozen; there is no resubmission edge.
var terminalStates = map[State]bool{
	StateRejectedManager: true,
	StateRejectedFinance: true,
	StatePaid:            true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid claim status
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a stored or user supplied value into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", ErrInvalidStateValue
	}
	return state, nil
}
