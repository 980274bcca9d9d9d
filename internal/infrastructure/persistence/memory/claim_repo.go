// Package memory provides in-process implementations of the storage ports.
// They are used by tests and by the "memory" database driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

// ClaimRepository keeps claims in a map. Every read returns a deep copy so
// callers can mutate freely until they Save.
type ClaimRepository struct {
	mu          sync.RWMutex
	claims      map[int64]*entity.Claim
	nextClaimID int64
	nextAuditID int64
}

// NewClaimRepository creates an empty repository
func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{
		claims: make(map[int64]*entity.Claim),
	}
}

// Create stores a new claim
func (r *ClaimRepository) Create(_ context.Context, claim *entity.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextClaimID++
	claim.ID = r.nextClaimID
	claim.Version = 1
	if err := claim.AssignAuditIDs(r.assignAuditID); err != nil {
		return err
	}

	r.claims[claim.ID] = claim.Clone()
	return nil
}

// GetByID loads a claim
func (r *ClaimRepository) GetByID(_ context.Context, id int64) (*entity.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.claims[id]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

// Save replaces the stored claim if its version matches
func (r *ClaimRepository) Save(_ context.Context, claim *entity.Claim, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.claims[claim.ID]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("claim %d: %w", claim.ID, port.ErrVersionConflict)
	}

	// work on a copy so a failure leaves the caller's claim untouched
	next := claim.Clone()
	if err := next.AssignAuditIDs(r.assignAuditID); err != nil {
		return err
	}
	next.Version = expectedVersion + 1

	r.claims[claim.ID] = next
	*claim = *next.Clone()
	return nil
}

// Delete removes a claim if its version matches
func (r *ClaimRepository) Delete(_ context.Context, id int64, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.claims[id]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("claim %d: %w", id, port.ErrVersionConflict)
	}
	delete(r.claims, id)
	return nil
}

// ListByOwner returns the owner's claims, newest first
func (r *ClaimRepository) ListByOwner(_ context.Context, ownerID int64) ([]*entity.Claim, error) {
	out := r.filter(func(c *entity.Claim) bool { return c.OwnerID == ownerID })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListByOwnersAndStatus returns matching claims, oldest first
func (r *ClaimRepository) ListByOwnersAndStatus(_ context.Context, ownerIDs []int64, status workflow.State) ([]*entity.Claim, error) {
	owners := make(map[int64]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}

	out := r.filter(func(c *entity.Claim) bool { return owners[c.OwnerID] && c.Status() == status })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListByStatus returns claims in status, most recently updated first
func (r *ClaimRepository) ListByStatus(_ context.Context, status workflow.State) ([]*entity.Claim, error) {
	out := r.filter(func(c *entity.Claim) bool { return c.Status() == status })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *ClaimRepository) filter(keep func(c *entity.Claim) bool) []*entity.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Claim, 0)
	for _, c := range r.claims {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// assignAuditID must be called with mu held
func (r *ClaimRepository) assignAuditID(entity.AuditEntry) (int64, error) {
	r.nextAuditID++
	return r.nextAuditID, nil
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
