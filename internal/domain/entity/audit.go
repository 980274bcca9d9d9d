package entity

import (
	"time"

	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

// ActionKind labels an audit entry
type ActionKind string

const (
	ActionCreated         ActionKind = "CREATED"
	ActionSubmitted       ActionKind = "SUBMITTED"
	ActionManagerApproved ActionKind = "MANAGER_APPROVED"
	ActionManagerRejected ActionKind = "MANAGER_REJECTED"
	ActionFinanceApproved ActionKind = "FINANCE_APPROVED"
	ActionFinanceRejected ActionKind = "FINANCE_REJECTED"
	ActionMarkedAsPaid    ActionKind = "MARKED_AS_PAID"
)

// Comments recorded for actions that carry no caller comment
const (
	CommentCreated   = "Draft created"
	CommentSubmitted = "Submitted for manager approval"
	CommentPaid      = "Payment processed"
)

var triggerActions = map[workflow.Trigger]ActionKind{
	workflow.TriggerSubmit:         ActionSubmitted,
	workflow.TriggerManagerApprove: ActionManagerApproved,
	workflow.TriggerManagerReject:  ActionManagerRejected,
	workflow.TriggerFinanceApprove: ActionFinanceApproved,
	workflow.TriggerFinanceReject:  ActionFinanceRejected,
	workflow.TriggerMarkPaid:       ActionMarkedAsPaid,
}

// ActionFor returns the audit action recorded when trigger is accepted
func ActionFor(trigger workflow.Trigger) (ActionKind, bool) {
	a, ok := triggerActions[trigger]
	return a, ok
}

// AuditEntry is an immutable record of one accepted action on a claim.
// ID is zero until the entry has been persisted.
type AuditEntry struct {
	ID        int64      `json:"id"`
	ClaimID   int64      `json:"claim_id"`
	ActorID   int64      `json:"actor_id"`
	ActorName string     `json:"actor_name"`
	Action    ActionKind `json:"action"`
	Comment   string     `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsPersisted reports whether the store has assigned an id
func (e AuditEntry) IsPersisted() bool {
	return e.ID != 0
}
