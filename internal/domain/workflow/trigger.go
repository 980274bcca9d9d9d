package workflow

// Trigger represents an actor action that can cause a status transition
type Trigger string

const (
	TriggerSubmit         Trigger = "SUBMIT"
	TriggerManagerApprove Trigger = "MANAGER_APPROVE"
	TriggerManagerReject  Trigger = "MANAGER_REJECT"
	TriggerFinanceApprove Trigger = "FINANCE_APPROVE"
	TriggerFinanceReject  Trigger = "FINANCE_REJECT"
	TriggerMarkPaid       Trigger = "MARK_PAID"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// RequiresComment reports whether the trigger must carry a non-blank comment
func (t Trigger) RequiresComment() bool {
	return t == TriggerManagerReject || t == TriggerFinanceReject
}
