package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	appwf "github.com/garyjia/claim-workflow/internal/application/workflow"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/pkg/database"
)

type store struct {
	db     *DB
	claims *ClaimRepository
	users  *UserDirectory

	manager  identity.Identity
	employee identity.Identity
	finance  identity.Identity
}

func newStore(t *testing.T) *store {
	t.Helper()
	logger := zap.NewNop()

	sqlDB, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "claims.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = database.Migrate(context.Background(), sqlDB, logger)
	require.NoError(t, err)

	db := NewDB(sqlDB, logger)
	s := &store{db: db, claims: NewClaimRepository(db, logger), users: NewUserDirectory(db, logger)}

	ctx := context.Background()
	s.manager = identity.Identity{DisplayName: "Morgan", Role: identity.RoleManager}
	require.NoError(t, s.users.Create(ctx, &s.manager))
	s.employee = identity.Identity{DisplayName: "Erin", Role: identity.RoleEmployee, ManagerID: s.manager.ID}
	require.NoError(t, s.users.Create(ctx, &s.employee))
	s.finance = identity.Identity{DisplayName: "Fay", Role: identity.RoleFinance}
	require.NoError(t, s.users.Create(ctx, &s.finance))
	return s
}

var base = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

func (s *store) newClaim(t *testing.T, title string, at time.Time) *entity.Claim {
	t.Helper()
	c, err := entity.NewClaim(s.employee, entity.ClaimInput{
		Title:       title,
		Description: "desc",
		Amount:      decimal.RequireFromString("19.99"),
		ReceiptURL:  "https://r.example.com/1",
	}, at)
	require.NoError(t, err)
	require.NoError(t, s.claims.Create(context.Background(), c))
	return c
}

func TestClaimRepository_CreateAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := s.newClaim(t, "Lunch", base)
	assert.NotZero(t, c.ID)
	assert.Equal(t, int64(1), c.Version)
	require.Len(t, c.Audit(), 1)
	assert.True(t, c.Audit()[0].IsPersisted())

	got, err := s.claims.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.View(), got.View())
	assert.Equal(t, workflow.StateDraft, got.Status())
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, c.ID, got.Audit()[0].ClaimID)

	missing, err := s.claims.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClaimRepository_SaveChecksVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := s.newClaim(t, "Lunch", base)

	require.NoError(t, c.Transition(ctx, workflow.TriggerSubmit, s.employee, "", base.Add(time.Minute)))
	require.NoError(t, s.claims.Save(ctx, c, 1))
	assert.Equal(t, int64(2), c.Version)

	stale, err := s.claims.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, stale.Transition(ctx, workflow.TriggerManagerApprove, s.manager, "", base.Add(2*time.Minute)))

	err = s.claims.Save(ctx, stale, 1)
	assert.ErrorIs(t, err, port.ErrVersionConflict)

	got, err := s.claims.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingManager, got.Status())
	assert.Equal(t, 2, got.AuditLen(), "failed save must not append audit entries")

	require.NoError(t, s.claims.Save(ctx, stale, 2))
	got, err = s.claims.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingFinance, got.Status())
	assert.Equal(t, []entity.ActionKind{entity.ActionCreated, entity.ActionSubmitted, entity.ActionManagerApproved},
		[]entity.ActionKind{got.Audit()[0].Action, got.Audit()[1].Action, got.Audit()[2].Action})
}

func TestClaimRepository_DeleteRemovesAudit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := s.newClaim(t, "Lunch", base)

	assert.ErrorIs(t, s.claims.Delete(ctx, c.ID, 7), port.ErrVersionConflict)
	require.NoError(t, s.claims.Delete(ctx, c.ID, 1))

	got, err := s.claims.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries WHERE claim_id = ?`, c.ID).Scan(&n))
	assert.Zero(t, n)
}

func TestClaimRepository_Lists(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := s.newClaim(t, "first", base)
	second := s.newClaim(t, "second", base.Add(time.Hour))
	s.newClaim(t, "third", base.Add(2*time.Hour))

	for i, c := range []*entity.Claim{second, first} {
		require.NoError(t, c.Transition(ctx, workflow.TriggerSubmit, s.employee, "", base.Add(time.Duration(3+i)*time.Hour)))
		require.NoError(t, s.claims.Save(ctx, c, 1))
	}

	mine, err := s.claims.ListByOwner(ctx, s.employee.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{mine[0].Title, mine[1].Title, mine[2].Title})
	assert.Equal(t, 2, mine[1].AuditLen())

	team, err := s.claims.ListByOwnersAndStatus(ctx, []int64{s.employee.ID, 999}, workflow.StatePendingManager)
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "first", team[0].Title)

	none, err := s.claims.ListByOwnersAndStatus(ctx, nil, workflow.StatePendingManager)
	require.NoError(t, err)
	assert.Empty(t, none)

	byStatus, err := s.claims.ListByStatus(ctx, workflow.StatePendingManager)
	require.NoError(t, err)
	require.Len(t, byStatus, 2)
	assert.Equal(t, "first", byStatus[0].Title, "first was submitted last")
}

func TestUserDirectory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	got, err := s.users.GetByID(ctx, s.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, s.employee, *got)

	reports, err := s.users.ListReports(ctx, s.manager.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{s.employee.ID}, reports)

	other := identity.Identity{DisplayName: "Max", Role: identity.RoleManager}
	require.NoError(t, s.users.Create(ctx, &other))
	require.NoError(t, s.users.SetManager(ctx, s.employee.ID, other.ID))

	reports, err = s.users.ListReports(ctx, s.manager.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	all, err := s.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Zero(t, all[0].ManagerID)

	assert.Error(t, s.users.SetManager(ctx, 999, other.ID))

	missing, err := s.users.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		u := identity.Identity{DisplayName: "Ghost", Role: identity.RoleAdmin}
		require.NoError(t, s.users.Create(txCtx, &u))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEngineOnSQLite_ConcurrentApprovals(t *testing.T) {
	s := newStore(t)
	engine := appwf.NewEngine(s.claims, s.users, s.db)
	ctx := context.Background()

	v, err := engine.CreateClaim(ctx, s.employee, entity.ClaimInput{Title: "Flight", Amount: decimal.NewFromInt(300)})
	require.NoError(t, err)
	_, err = engine.Submit(ctx, v.ID, s.employee)
	require.NoError(t, err)

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = engine.ManagerDecide(ctx, v.ID, s.manager, true, "")
		}(i)
	}
	close(start)
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, workflow.ErrInvalidState)
	}
	assert.Equal(t, 1, ok)

	got, err := s.claims.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingFinance, got.Status())
	assert.Equal(t, 3, got.AuditLen())
	assert.Equal(t, int64(3), got.Version)
}

func TestEngineOnSQLite_FullLifecycle(t *testing.T) {
	s := newStore(t)
	engine := appwf.NewEngine(s.claims, s.users, s.db)
	ctx := context.Background()

	v, err := engine.CreateClaim(ctx, s.employee, entity.ClaimInput{Title: "Books", Amount: decimal.RequireFromString("45.10")})
	require.NoError(t, err)
	_, err = engine.Submit(ctx, v.ID, s.employee)
	require.NoError(t, err)
	_, err = engine.ManagerDecide(ctx, v.ID, s.manager, true, "fine")
	require.NoError(t, err)
	_, err = engine.FinanceDecide(ctx, v.ID, s.finance, true, "")
	require.NoError(t, err)
	v, err = engine.MarkPaid(ctx, v.ID, s.finance)
	require.NoError(t, err)

	got, err := s.claims.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got.View())
	assert.Equal(t, "PAID", got.View().Status)
	assert.Equal(t, "45.10", got.View().Amount)
	assert.Equal(t, "fine", got.View().History[2].Comment)
}
