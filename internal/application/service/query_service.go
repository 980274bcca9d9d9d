package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

// QueryService serves read-only claim views. It never mutates claims.
type QueryService interface {
	// GetByID returns a claim visible to actor: owner, owner's manager, Finance or Admin
	GetByID(ctx context.Context, id int64, actor identity.Identity) (entity.ClaimView, error)

	// ListMine returns the actor's own claims, newest first
	ListMine(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error)

	// ListTeamPending returns PENDING_MANAGER claims of the actor's direct reports, oldest first
	ListTeamPending(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error)

	// ListFinancePending returns PENDING_FINANCE claims, most recently updated first
	ListFinancePending(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error)
}

type queryServiceImpl struct {
	claims port.ClaimRepository
	users  port.UserDirectory
	logger *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(claims port.ClaimRepository, users port.UserDirectory, logger *zap.Logger) QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &queryServiceImpl{claims: claims, users: users, logger: logger}
}

func (s *queryServiceImpl) GetByID(ctx context.Context, id int64, actor identity.Identity) (entity.ClaimView, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return entity.ClaimView{}, transient("load claim", err)
	}
	if claim == nil {
		return entity.ClaimView{}, fmt.Errorf("%w: claim %d", workflow.ErrNotFound, id)
	}

	owner, err := s.users.GetByID(ctx, claim.OwnerID)
	if err != nil {
		return entity.ClaimView{}, transient("load claim owner", err)
	}
	var managerID int64
	if owner != nil {
		managerID = owner.ManagerID
	}

	if !workflow.CanRead(actor, claim.Subject(managerID)) {
		s.logger.Debug("Claim read denied", zap.Int64("claim_id", id), zap.Int64("actor_id", actor.ID))
		return entity.ClaimView{}, fmt.Errorf("%w: claim %d", workflow.ErrForbidden, id)
	}
	return claim.View(), nil
}

func (s *queryServiceImpl) ListMine(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error) {
	claims, err := s.claims.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, transient("list own claims", err)
	}
	sortNewestFirst(claims)
	return entity.Views(claims), nil
}

func (s *queryServiceImpl) ListTeamPending(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error) {
	if actor.Role != identity.RoleManager {
		return []entity.ClaimView{}, nil
	}

	reports, err := s.users.ListReports(ctx, actor.ID)
	if err != nil {
		return nil, transient("list direct reports", err)
	}
	if len(reports) == 0 {
		return []entity.ClaimView{}, nil
	}

	claims, err := s.claims.ListByOwnersAndStatus(ctx, reports, workflow.StatePendingManager)
	if err != nil {
		return nil, transient("list team claims", err)
	}
	sortOldestFirst(claims)
	return entity.Views(claims), nil
}

func (s *queryServiceImpl) ListFinancePending(ctx context.Context, actor identity.Identity) ([]entity.ClaimView, error) {
	if !actor.HasRole(identity.RoleFinance, identity.RoleAdmin) {
		return nil, fmt.Errorf("%w: finance queue requires the finance role", workflow.ErrForbidden)
	}

	claims, err := s.claims.ListByStatus(ctx, workflow.StatePendingFinance)
	if err != nil {
		return nil, transient("list finance claims", err)
	}
	sortRecentlyUpdatedFirst(claims)
	return entity.Views(claims), nil
}

// Sorting is repeated here so every store yields the same order

func sortNewestFirst(claims []*entity.Claim) {
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.After(claims[j].CreatedAt)
		}
		return claims[i].ID > claims[j].ID
	})
}

func sortOldestFirst(claims []*entity.Claim) {
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.Before(claims[j].CreatedAt)
		}
		return claims[i].ID < claims[j].ID
	})
}

func sortRecentlyUpdatedFirst(claims []*entity.Claim) {
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].UpdatedAt.Equal(claims[j].UpdatedAt) {
			return claims[i].UpdatedAt.After(claims[j].UpdatedAt)
		}
		return claims[i].ID > claims[j].ID
	})
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", workflow.ErrTransient, op, err)
}
