package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

func TestReportService_ExportClaims(t *testing.T) {
	e := newEnv(t)
	svc := NewReportService(e.claims, e.clock, nil)
	ctx := context.Background()

	v := e.toFinance(t, employee, "Conference")
	_, err := e.engine.FinanceDecide(ctx, v.ID, finance, true, "ok")
	require.NoError(t, err)
	e.toFinance(t, colleague, "Still pending")

	data, err := svc.ExportClaims(ctx, finance, "")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Claims")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "APPROVED claims", rows[0][0])
	assert.Equal(t, "Conference", rows[4][2])

	pending, err := svc.ExportClaims(ctx, admin, "pending_finance")
	require.NoError(t, err)
	assert.NotEmpty(t, pending)
}

func TestReportService_ExportRejections(t *testing.T) {
	e := newEnv(t)
	svc := NewReportService(e.claims, e.clock, nil)
	ctx := context.Background()

	_, err := svc.ExportClaims(ctx, manager, "")
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	_, err = svc.ExportClaims(ctx, finance, "SETTLED")
	assert.ErrorIs(t, err, workflow.ErrValidation)
}
