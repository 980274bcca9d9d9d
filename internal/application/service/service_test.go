package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claim-workflow/internal/application/port"
	appwf "github.com/garyjia/claim-workflow/internal/application/workflow"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/infrastructure/persistence/memory"
)

var (
	manager      = identity.Identity{ID: 1, DisplayName: "Morgan", Role: identity.RoleManager}
	employee     = identity.Identity{ID: 2, DisplayName: "Erin", Role: identity.RoleEmployee, ManagerID: 1}
	colleague    = identity.Identity{ID: 3, DisplayName: "Oli", Role: identity.RoleEmployee, ManagerID: 1}
	finance      = identity.Identity{ID: 4, DisplayName: "Fay", Role: identity.RoleFinance}
	admin        = identity.Identity{ID: 5, DisplayName: "Ada", Role: identity.RoleAdmin}
	otherManager = identity.Identity{ID: 6, DisplayName: "Max", Role: identity.RoleManager}
	outsider     = identity.Identity{ID: 7, DisplayName: "Sam", Role: identity.RoleEmployee, ManagerID: 6}
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type env struct {
	engine appwf.ClaimWorkflow
	claims *memory.ClaimRepository
	users  *memory.UserDirectory
	clock  port.Clock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	claims := memory.NewClaimRepository()
	users := memory.NewUserDirectory(manager, employee, colleague, finance, admin, otherManager, outsider)
	clock := &tickingClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	return &env{
		engine: appwf.NewEngine(claims, users, memory.TxManager{}, appwf.WithClock(clock)),
		claims: claims,
		users:  users,
		clock:  clock,
	}
}

func (e *env) create(t *testing.T, owner identity.Identity, title string) entity.ClaimView {
	t.Helper()
	v, err := e.engine.CreateClaim(context.Background(), owner, entity.ClaimInput{
		Title:  title,
		Amount: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)
	return v
}

func (e *env) submit(t *testing.T, owner identity.Identity, title string) entity.ClaimView {
	t.Helper()
	v := e.create(t, owner, title)
	v, err := e.engine.Submit(context.Background(), v.ID, owner)
	require.NoError(t, err)
	return v
}

func (e *env) toFinance(t *testing.T, owner identity.Identity, title string) entity.ClaimView {
	t.Helper()
	v := e.submit(t, owner, title)
	mgr := manager
	if owner.ManagerID == otherManager.ID {
		mgr = otherManager
	}
	v, err := e.engine.ManagerDecide(context.Background(), v.ID, mgr, true, "")
	require.NoError(t, err)
	return v
}

func titles(views []entity.ClaimView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Title)
	}
	return out
}
