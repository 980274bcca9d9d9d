package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

const claimColumns = `id, owner_id, owner_name, title, description, amount, receipt_url,
	status, version, created_at, updated_at`

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *DB, logger *zap.Logger) *ClaimRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimRepository{db: db, logger: logger}
}

// Create inserts the claim and its audit entries
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO claims (
				owner_id, owner_name, title, description, amount, receipt_url,
				status, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`
		result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
			claim.OwnerID,
			claim.OwnerName,
			claim.Title,
			claim.Description,
			claim.Amount.String(),
			claim.ReceiptURL,
			claim.Status().String(),
			claim.CreatedAt,
			claim.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create claim", zap.Error(err))
			return fmt.Errorf("failed to create claim: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		claim.ID = id
		claim.Version = 1

		return claim.AssignAuditIDs(func(e entity.AuditEntry) (int64, error) {
			return r.insertAudit(ctx, e)
		})
	})
}

// GetByID retrieves a claim with its audit trail
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, status, err := scanClaim(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	audit, err := r.loadAudit(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return entity.Restore(claim, status, audit[id])
}

// Save applies the version check, updates the row and appends new audit entries
func (r *ClaimRepository) Save(ctx context.Context, claim *entity.Claim, expectedVersion int64) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE claims
			SET title = ?, description = ?, amount = ?, receipt_url = ?,
				status = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`
		result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
			claim.Title,
			claim.Description,
			claim.Amount.String(),
			claim.ReceiptURL,
			claim.Status().String(),
			claim.UpdatedAt,
			claim.ID,
			expectedVersion,
		)
		if err != nil {
			r.logger.Error("Failed to update claim", zap.Int64("id", claim.ID), zap.Error(err))
			return fmt.Errorf("failed to update claim: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("claim %d at version %d: %w", claim.ID, expectedVersion, port.ErrVersionConflict)
		}

		if err := claim.AssignAuditIDs(func(e entity.AuditEntry) (int64, error) {
			return r.insertAudit(ctx, e)
		}); err != nil {
			return err
		}
		claim.Version = expectedVersion + 1
		return nil
	})
}

// Delete removes the claim; audit entries go with it via ON DELETE CASCADE
func (r *ClaimRepository) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM claims WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to delete claim", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim %d at version %d: %w", id, expectedVersion, port.ErrVersionConflict)
	}
	return nil
}

// ListByOwner returns the owner's claims, newest first
func (r *ClaimRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, ownerID)
}

// ListByOwnersAndStatus returns claims in status owned by ownerIDs, oldest first
func (r *ClaimRepository) ListByOwnersAndStatus(ctx context.Context, ownerIDs []int64, status workflow.State) ([]*entity.Claim, error) {
	if len(ownerIDs) == 0 {
		return []*entity.Claim{}, nil
	}

	args := make([]interface{}, 0, len(ownerIDs)+1)
	args = append(args, status.String())
	for _, id := range ownerIDs {
		args = append(args, id)
	}

	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE status = ? AND owner_id IN (` + placeholders(len(ownerIDs)) + `)
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, args...)
}

// ListByStatus returns claims in status, most recently updated first
func (r *ClaimRepository) ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE status = ? ORDER BY updated_at DESC, id DESC`
	return r.list(ctx, query, status.String())
}

func (r *ClaimRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Claim, error) {
	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	type row struct {
		claim  *entity.Claim
		status workflow.State
	}
	var scanned []row
	ids := make([]int64, 0)
	for rows.Next() {
		claim, status, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		scanned = append(scanned, row{claim, status})
		ids = append(ids, claim.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}

	audit, err := r.loadAudit(ctx, ids)
	if err != nil {
		return nil, err
	}

	claims := make([]*entity.Claim, 0, len(scanned))
	for _, s := range scanned {
		c, err := entity.Restore(s.claim, s.status, audit[s.claim.ID])
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, nil
}

func (r *ClaimRepository) insertAudit(ctx context.Context, e entity.AuditEntry) (int64, error) {
	query := `
		INSERT INTO audit_entries (claim_id, actor_id, actor_name, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		e.ClaimID, e.ActorID, e.ActorName, string(e.Action), e.Comment, e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append audit entry", zap.Int64("claim_id", e.ClaimID), zap.Error(err))
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return result.LastInsertId()
}

// loadAudit returns audit entries grouped by claim, in insertion order
func (r *ClaimRepository) loadAudit(ctx context.Context, claimIDs []int64) (map[int64][]entity.AuditEntry, error) {
	out := make(map[int64][]entity.AuditEntry, len(claimIDs))
	if len(claimIDs) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(claimIDs))
	for i, id := range claimIDs {
		args[i] = id
	}
	query := `
		SELECT id, claim_id, actor_id, actor_name, action, comment, created_at
		FROM audit_entries
		WHERE claim_id IN (` + placeholders(len(claimIDs)) + `)
		ORDER BY claim_id, id
	`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entity.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.ActorID, &e.ActorName, &action, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = entity.ActionKind(action)
		out[e.ClaimID] = append(out[e.ClaimID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(s scanner) (*entity.Claim, workflow.State, error) {
	var c entity.Claim
	var status string
	err := s.Scan(
		&c.ID,
		&c.OwnerID,
		&c.OwnerName,
		&c.Title,
		&c.Description,
		&c.Amount,
		&c.ReceiptURL,
		&status,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, "", err
	}
	return &c, workflow.State(status), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
