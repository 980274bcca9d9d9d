package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

// UserDirectory implements port.UserDirectory
type UserDirectory struct {
	db     *DB
	logger *zap.Logger
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(db *DB, logger *zap.Logger) *UserDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDirectory{db: db, logger: logger}
}

// Create inserts a user
func (d *UserDirectory) Create(ctx context.Context, user *identity.Identity) error {
	result, err := d.db.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO users (display_name, role, manager_id) VALUES (?, ?, ?)`,
		user.DisplayName, user.Role.String(), nullableID(user.ManagerID))
	if err != nil {
		d.logger.Error("Failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user
func (d *UserDirectory) GetByID(ctx context.Context, id int64) (*identity.Identity, error) {
	row := d.db.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT id, display_name, role, manager_id FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		d.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns all users ordered by ID
func (d *UserDirectory) List(ctx context.Context) ([]*identity.Identity, error) {
	rows, err := d.db.getExecutor(ctx).QueryContext(ctx,
		`SELECT id, display_name, role, manager_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*identity.Identity, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListReports returns the IDs of users whose manager is managerID
func (d *UserDirectory) ListReports(ctx context.Context, managerID int64) ([]int64, error) {
	rows, err := d.db.getExecutor(ctx).QueryContext(ctx,
		`SELECT id FROM users WHERE manager_id = ? ORDER BY id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetManager updates a user's manager
func (d *UserDirectory) SetManager(ctx context.Context, userID, managerID int64) error {
	result, err := d.db.getExecutor(ctx).ExecContext(ctx,
		`UPDATE users SET manager_id = ? WHERE id = ?`, nullableID(managerID), userID)
	if err != nil {
		return fmt.Errorf("failed to set manager: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

func scanUser(s scanner) (*identity.Identity, error) {
	var user identity.Identity
	var role string
	var managerID sql.NullInt64
	if err := s.Scan(&user.ID, &user.DisplayName, &role, &managerID); err != nil {
		return nil, err
	}

	parsed, err := identity.ParseRole(role)
	if err != nil {
		return nil, err
	}
	user.Role = parsed
	user.ManagerID = managerID.Int64
	return &user, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

var _ port.UserDirectory = (*UserDirectory)(nil)
