package workflow

import (
	"fmt"

	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

// Requirement names the relation an actor must have to a claim to fire a trigger
type Requirement int

const (
	RequireOwner Requirement = iota + 1
	RequireOwnersManager
	RequireFinance
)

func (r Requirement) String() string {
	switch r {
	case RequireOwner:
		return "owner"
	case RequireOwnersManager:
		return "owner's manager"
	case RequireFinance:
		return "finance"
	default:
		return "unknown"
	}
}

var triggerRequirements = map[Trigger]Requirement{
	TriggerSubmit:         RequireOwner,
	TriggerManagerApprove: RequireOwnersManager,
	TriggerManagerReject:  RequireOwnersManager,
	TriggerFinanceApprove: RequireFinance,
	TriggerFinanceReject:  RequireFinance,
	TriggerMarkPaid:       RequireFinance,
}

// Subject is the part of a claim that authorization looks at.
// OwnerManagerID is the owner's manager at decision time, zero if none.
type Subject struct {
	OwnerID        int64
	OwnerManagerID int64
}

// RequirementFor returns the requirement attached to a trigger
func RequirementFor(trigger Trigger) (Requirement, bool) {
	r, ok := triggerRequirements[trigger]
	return r, ok
}

// Satisfies reports whether actor meets requirement r for the subject
func (r Requirement) Satisfies(actor identity.Identity, subject Subject) bool {
	switch r {
	case RequireOwner:
		return actor.ID != 0 && actor.ID == subject.OwnerID
	case RequireOwnersManager:
		return actor.Role == identity.RoleManager &&
			subject.OwnerManagerID != 0 &&
			subject.OwnerManagerID == actor.ID
	case RequireFinance:
		return actor.Role == identity.RoleFinance
	default:
		return false
	}
}

// Authorize checks that actor may fire trigger against the subject
func Authorize(trigger Trigger, actor identity.Identity, subject Subject) error {
	req, ok := RequirementFor(trigger)
	if !ok {
		return fmt.Errorf("%w: unknown action %s", ErrForbidden, trigger)
	}
	if !req.Satisfies(actor, subject) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, trigger, req)
	}
	return nil
}

// AuthorizeOwner guards draft edits and deletion
func AuthorizeOwner(actor identity.Identity, subject Subject) error {
	if !RequireOwner.Satisfies(actor, subject) {
		return fmt.Errorf("%w: only the owner may modify this claim", ErrForbidden)
	}
	return nil
}

// CanRead reports whether actor may view the claim
func CanRead(actor identity.Identity, subject Subject) bool {
	if actor.HasRole(identity.RoleFinance, identity.RoleAdmin) {
		return true
	}
	return RequireOwner.Satisfies(actor, subject) || RequireOwnersManager.Satisfies(actor, subject)
}
