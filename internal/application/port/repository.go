package port

import (
	"context"
	"errors"

	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

// ErrVersionConflict is returned by Save and Delete when the stored version
// no longer matches the version the caller read
var ErrVersionConflict = errors.New("claim version conflict")

// ClaimRepository persists claim aggregates together with their audit trail.
//
// Getters return (nil, nil) when the claim does not exist. Save and Delete
// must apply the version check and the write in one atomic step.
type ClaimRepository interface {
	// Create stores a new claim and its audit entries, assigning IDs and setting Version to 1
	Create(ctx context.Context, claim *entity.Claim) error

	// GetByID loads a claim with its full audit trail
	GetByID(ctx context.Context, id int64) (*entity.Claim, error)

	// Save writes fields and status, appends unpersisted audit entries and
	// increments Version, provided the stored version equals expectedVersion
	Save(ctx context.Context, claim *entity.Claim, expectedVersion int64) error

	// Delete removes the claim and its audit trail if the stored version equals expectedVersion
	Delete(ctx context.Context, id int64, expectedVersion int64) error

	// ListByOwner returns the owner's claims, newest first
	ListByOwner(ctx context.Context, ownerID int64) ([]*entity.Claim, error)

	// ListByOwnersAndStatus returns claims in status owned by any of ownerIDs, oldest first
	ListByOwnersAndStatus(ctx context.Context, ownerIDs []int64, status workflow.State) ([]*entity.Claim, error)

	// ListByStatus returns claims in status, most recently updated first
	ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Claim, error)
}

// UserDirectory resolves identities. It holds no credential material.
type UserDirectory interface {
	// Create stores a new identity and assigns its ID
	Create(ctx context.Context, user *identity.Identity) error

	// GetByID returns (nil, nil) when the user does not exist
	GetByID(ctx context.Context, id int64) (*identity.Identity, error)

	// List returns all users ordered by ID
	List(ctx context.Context) ([]*identity.Identity, error)

	// ListReports returns the IDs of users whose manager is managerID
	ListReports(ctx context.Context, managerID int64) ([]int64, error)

	// SetManager changes a user's manager; zero clears it
	SetManager(ctx context.Context, userID, managerID int64) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
