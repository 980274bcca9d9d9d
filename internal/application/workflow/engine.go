package workflow

import (
	"context"

	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

// ClaimWorkflow is the only mutation path for claims. Every call loads the
// claim, checks the actor, checks the current state, validates input and
// commits the change with its audit entry in one atomic step.
type ClaimWorkflow interface {
	CreateClaim(ctx context.Context, owner identity.Identity, in entity.ClaimInput) (entity.ClaimView, error)
	UpdateClaim(ctx context.Context, id int64, owner identity.Identity, in entity.ClaimInput) (entity.ClaimView, error)
	DeleteClaim(ctx context.Context, id int64, owner identity.Identity) error

	Submit(ctx context.Context, id int64, owner identity.Identity) (entity.ClaimView, error)

	// ManagerDecide approves or rejects a PENDING_MANAGER claim. Rejections need a comment.
	ManagerDecide(ctx context.Context, id int64, manager identity.Identity, approve bool, comment string) (entity.ClaimView, error)

	// FinanceDecide approves or rejects a PENDING_FINANCE claim. Rejections need a comment.
	FinanceDecide(ctx context.Context, id int64, finance identity.Identity, approve bool, comment string) (entity.ClaimView, error)

	MarkPaid(ctx context.Context, id int64, finance identity.Identity) (entity.ClaimView, error)
}
