package workflow

import "context"

// StateMachine tracks the current claim status and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire moves along the trigger's edge or returns ErrInvalidTransition
	Fire(ctx context.Context, trigger Trigger) error
}

// BuildClaimStateMachine creates a state machine configured with the claim approval edges
func BuildClaimStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePendingManager)

	builder.Configure(StatePendingManager).
		Permit(TriggerManagerApprove, StatePendingFinance).
		Permit(TriggerManagerReject, StateRejectedManager)

	builder.Configure(StatePendingFinance).
		Permit(TriggerFinanceApprove, StateApproved).
		Permit(TriggerFinanceReject, StateRejectedFinance)

	builder.Configure(StateApproved).
		Permit(TriggerMarkPaid, StatePaid)

	// REJECTED_MANAGER, REJECTED_FINANCE and PAID are terminal

	return builder.Build(initialState)
}
