package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/pkg/utils"
)

// ErrUserNotFound is returned when a referenced user does not exist
var ErrUserNotFound = errors.New("user not found")

// NewUser is the input for DirectoryService.CreateUser
type NewUser struct {
	DisplayName string
	Role        identity.Role
	ManagerID   int64
}

// DirectoryService maintains the user directory the workflow authorizes against
type DirectoryService interface {
	CreateUser(ctx context.Context, in NewUser) (*identity.Identity, error)
	GetUser(ctx context.Context, id int64) (*identity.Identity, error)
	ListUsers(ctx context.Context) ([]*identity.Identity, error)

	// SetManager re-parents a user. Decisions already recorded on claims are not affected.
	SetManager(ctx context.Context, userID, managerID int64) (*identity.Identity, error)
}

type directoryServiceImpl struct {
	users     port.UserDirectory
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(users port.UserDirectory, txManager port.TransactionManager, logger *zap.Logger) DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &directoryServiceImpl{users: users, txManager: txManager, logger: logger}
}

func (s *directoryServiceImpl) CreateUser(ctx context.Context, in NewUser) (*identity.Identity, error) {
	name := strings.TrimSpace(utils.SanitizeString(in.DisplayName))
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", workflow.ErrValidation)
	}
	if !in.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role", workflow.ErrValidation)
	}

	user := &identity.Identity{DisplayName: name, Role: in.Role, ManagerID: in.ManagerID}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkManager(txCtx, user.Role, 0, user.ManagerID); err != nil {
			return err
		}
		return s.users.Create(txCtx, user)
	})
	if err != nil {
		return nil, classify("create user", err)
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.Int64("manager_id", user.ManagerID))
	return user, nil
}

func (s *directoryServiceImpl) GetUser(ctx context.Context, id int64) (*identity.Identity, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, transient("load user", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return user, nil
}

func (s *directoryServiceImpl) ListUsers(ctx context.Context) ([]*identity.Identity, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, transient("list users", err)
	}
	return users, nil
}

func (s *directoryServiceImpl) SetManager(ctx context.Context, userID, managerID int64) (*identity.Identity, error) {
	var updated *identity.Identity
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
		}
		if err := s.checkManager(txCtx, user.Role, user.ID, managerID); err != nil {
			return err
		}
		if err := s.users.SetManager(txCtx, userID, managerID); err != nil {
			return err
		}
		user.ManagerID = managerID
		updated = user
		return nil
	})
	if err != nil {
		return nil, classify("set manager", err)
	}

	s.logger.Info("Manager changed", zap.Int64("user_id", userID), zap.Int64("manager_id", managerID))
	return updated, nil
}

// checkManager enforces that employees report to an existing manager and nobody reports to themselves
func (s *directoryServiceImpl) checkManager(ctx context.Context, role identity.Role, userID, managerID int64) error {
	if managerID == 0 {
		if role == identity.RoleEmployee {
			return fmt.Errorf("%w: employees must have a manager", workflow.ErrValidation)
		}
		return nil
	}
	if userID != 0 && managerID == userID {
		return fmt.Errorf("%w: a user cannot manage themselves", workflow.ErrValidation)
	}

	mgr, err := s.users.GetByID(ctx, managerID)
	if err != nil {
		return err
	}
	if mgr == nil {
		return fmt.Errorf("%w: manager %d does not exist", workflow.ErrValidation, managerID)
	}
	if mgr.Role != identity.RoleManager {
		return fmt.Errorf("%w: user %d is not a manager", workflow.ErrValidation, managerID)
	}
	return nil
}

// classify passes rejections through and marks everything else transient
func classify(op string, err error) error {
	if workflow.IsRejection(err) || errors.Is(err, ErrUserNotFound) {
		return err
	}
	return transient(op, err)
}
