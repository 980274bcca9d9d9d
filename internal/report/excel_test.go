package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

func approvedClaim(t *testing.T, id int64, amount string) *entity.Claim {
	t.Helper()
	owner := identity.Identity{ID: 2, DisplayName: "Erin", Role: identity.RoleEmployee, ManagerID: 1}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	c, err := entity.NewClaim(owner, entity.ClaimInput{Title: "Hotel", Amount: decimal.RequireFromString(amount)}, now)
	require.NoError(t, err)
	c.ID = id

	ctx := context.Background()
	require.NoError(t, c.Transition(ctx, workflow.TriggerSubmit, owner, "", now.Add(time.Hour)))
	require.NoError(t, c.Transition(ctx, workflow.TriggerManagerApprove, identity.Identity{ID: 1, Role: identity.RoleManager}, "", now.Add(2*time.Hour)))
	require.NoError(t, c.Transition(ctx, workflow.TriggerFinanceApprove, identity.Identity{ID: 4, Role: identity.RoleFinance}, "", now.Add(3*time.Hour)))
	return c
}

func TestClaimWorkbook_Render(t *testing.T) {
	claims := []*entity.Claim{approvedClaim(t, 7, "120.50"), approvedClaim(t, 9, "0.25")}

	data, err := NewClaimWorkbook(nil).Render("Approved claims", claims, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Approved claims", title)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	assert.Equal(t, headers, rows[3])
	assert.Equal(t, "7", rows[4][0])
	assert.Equal(t, "Erin", rows[4][1])
	assert.Equal(t, "APPROVED", rows[4][6])
	assert.Equal(t, "2024-05-01", rows[4][7])

	total, err := f.GetCellValue(sheetName, "E7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "120.75", total)
}

func TestClaimWorkbook_RenderKeepsSubCentTotal(t *testing.T) {
	claims := []*entity.Claim{approvedClaim(t, 7, "120.50"), approvedClaim(t, 8, "0.005")}

	data, err := NewClaimWorkbook(nil).Render("Approved claims", claims, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	cell, err := f.GetCellValue(sheetName, "E6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0.005", cell)

	total, err := f.GetCellValue(sheetName, "E7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "120.505", total)
}

func TestClaimWorkbook_RenderEmpty(t *testing.T) {
	data, err := NewClaimWorkbook(nil).Render("Nothing", nil, time.Now())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	total, err := f.GetCellValue(sheetName, "E5", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0", total)
}
