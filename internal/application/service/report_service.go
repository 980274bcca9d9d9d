package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/internal/report"
)

// ReportService produces finance exports
type ReportService interface {
	// ExportClaims renders every claim in status as an xlsx workbook.
	// An empty status means APPROVED, the claims awaiting payment.
	ExportClaims(ctx context.Context, actor identity.Identity, status string) ([]byte, error)
}

type reportServiceImpl struct {
	claims   port.ClaimRepository
	workbook *report.ClaimWorkbook
	clock    port.Clock
	logger   *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(claims port.ClaimRepository, clock port.Clock, logger *zap.Logger) ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &reportServiceImpl{
		claims:   claims,
		workbook: report.NewClaimWorkbook(logger),
		clock:    clock,
		logger:   logger,
	}
}

func (s *reportServiceImpl) ExportClaims(ctx context.Context, actor identity.Identity, status string) ([]byte, error) {
	if !actor.HasRole(identity.RoleFinance, identity.RoleAdmin) {
		return nil, fmt.Errorf("%w: exports require the finance role", workflow.ErrForbidden)
	}

	state := workflow.StateApproved
	if strings.TrimSpace(status) != "" {
		parsed, err := workflow.ParseState(strings.ToUpper(strings.TrimSpace(status)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
		}
		state = parsed
	}

	claims, err := s.claims.ListByStatus(ctx, state)
	if err != nil {
		return nil, transient("list claims for export", err)
	}
	sortOldestFirst(claims)

	data, err := s.workbook.Render(fmt.Sprintf("%s claims", state), claims, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claims exported",
		zap.Int64("actor_id", actor.ID),
		zap.String("status", state.String()),
		zap.Int("count", len(claims)))
	return data, nil
}
