package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/pkg/utils"
)

// ClaimInput carries the editable fields of a claim
type ClaimInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	ReceiptURL  string
}

// Validate checks the input and normalises whitespace in place
func (in *ClaimInput) Validate() error {
	in.Title = strings.TrimSpace(utils.SanitizeString(in.Title))
	in.Description = strings.TrimSpace(utils.SanitizeString(in.Description))
	in.ReceiptURL = strings.TrimSpace(in.ReceiptURL)

	if err := utils.ValidateTitle(in.Title); err != nil {
		return fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := utils.ValidateReceiptRef(in.ReceiptURL); err != nil {
		return fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	return nil
}

// Claim is the reimbursement claim aggregate: fields, status and audit trail.
// Status and audit are only changed through the methods below.
type Claim struct {
	ID          int64
	OwnerID     int64
	OwnerName   string
	Title       string
	Description string
	Amount      decimal.Decimal
	ReceiptURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Version is the optimistic concurrency token; the store bumps it on every commit
	Version int64

	status workflow.State
	audit  []AuditEntry
}

// NewClaim creates a DRAFT claim owned by owner with its CREATED entry
func NewClaim(owner identity.Identity, in ClaimInput, now time.Time) (*Claim, error) {
	if owner.ID == 0 {
		return nil, fmt.Errorf("%w: claim owner is required", workflow.ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Claim{
		OwnerID:     owner.ID,
		OwnerName:   owner.DisplayName,
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		ReceiptURL:  in.ReceiptURL,
		CreatedAt:   now,
		UpdatedAt:   now,
		status:      workflow.StateDraft,
	}
	c.appendAudit(owner, ActionCreated, CommentCreated, now)

	return c, nil
}

// Restore rebuilds a claim read from storage
func Restore(c *Claim, status workflow.State, audit []AuditEntry) (*Claim, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("claim %d: %w: %q", c.ID, workflow.ErrInvalidStateValue, status)
	}
	c.status = status
	c.audit = append([]AuditEntry(nil), audit...)
	return c, nil
}

// Status returns the current workflow state
func (c *Claim) Status() workflow.State {
	return c.status
}

// Audit returns a copy of the audit trail in insertion order
func (c *Claim) Audit() []AuditEntry {
	return append([]AuditEntry(nil), c.audit...)
}

// AuditLen returns the number of audit entries
func (c *Claim) AuditLen() int {
	return len(c.audit)
}

// IsDraft reports whether the claim can still be edited or deleted
func (c *Claim) IsDraft() bool {
	return c.status == workflow.StateDraft
}

// Subject returns the authorization view of the claim given the owner's current manager
func (c *Claim) Subject(ownerManagerID int64) workflow.Subject {
	return workflow.Subject{OwnerID: c.OwnerID, OwnerManagerID: ownerManagerID}
}

// Update replaces the editable fields. Only DRAFT claims can be edited.
func (c *Claim) Update(in ClaimInput, now time.Time) error {
	if !c.IsDraft() {
		return fmt.Errorf("%w: only DRAFT claims can be updated (status %s)", workflow.ErrInvalidState, c.status)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	c.Title = in.Title
	c.Description = in.Description
	c.Amount = in.Amount
	c.ReceiptURL = in.ReceiptURL
	c.UpdatedAt = now
	return nil
}

// EnsureDeletable returns ErrInvalidState unless the claim is a draft
func (c *Claim) EnsureDeletable() error {
	if !c.IsDraft() {
		return fmt.Errorf("%w: only DRAFT claims can be deleted (status %s)", workflow.ErrInvalidState, c.status)
	}
	return nil
}

// Transition fires trigger on the claim and records one audit entry.
// Authorization is the caller's job. On error the claim is unchanged.
func (c *Claim) Transition(ctx context.Context, trigger workflow.Trigger, actor identity.Identity, comment string, now time.Time) error {
	action, ok := ActionFor(trigger)
	if !ok {
		return fmt.Errorf("%w: unknown action %s", workflow.ErrValidation, trigger)
	}

	machine := workflow.BuildClaimStateMachine(c.status)
	if !machine.CanFire(trigger) {
		return fmt.Errorf("%w: cannot %s a claim in %s", workflow.ErrInvalidState, trigger, c.status)
	}

	comment = strings.TrimSpace(utils.SanitizeString(comment))
	if trigger.RequiresComment() && comment == "" {
		return fmt.Errorf("%w: a comment is required for %s", workflow.ErrValidation, trigger)
	}

	if err := machine.Fire(ctx, trigger); err != nil {
		return fmt.Errorf("%w: %v", workflow.ErrInvalidState, err)
	}

	switch trigger {
	case workflow.TriggerSubmit:
		comment = CommentSubmitted
	case workflow.TriggerMarkPaid:
		comment = CommentPaid
	}

	c.status = machine.State()
	c.UpdatedAt = now
	c.appendAudit(actor, action, comment, now)
	return nil
}

// AssignAuditIDs calls assign for every entry not yet persisted and stores the returned id
func (c *Claim) AssignAuditIDs(assign func(e AuditEntry) (int64, error)) error {
	for i := range c.audit {
		if c.audit[i].IsPersisted() {
			continue
		}
		c.audit[i].ClaimID = c.ID
		id, err := assign(c.audit[i])
		if err != nil {
			return err
		}
		c.audit[i].ID = id
	}
	return nil
}

// Clone returns a deep copy
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.audit = append([]AuditEntry(nil), c.audit...)
	return &cp
}

func (c *Claim) appendAudit(actor identity.Identity, action ActionKind, comment string, now time.Time) {
	c.audit = append(c.audit, AuditEntry{
		ClaimID:   c.ID,
		ActorID:   actor.ID,
		ActorName: actor.DisplayName,
		Action:    action,
		Comment:   comment,
		CreatedAt: now,
	})
}
