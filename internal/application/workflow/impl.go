package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/dispatcher"
	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/event"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	domainwf "github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/internal/metrics"
	"github.com/garyjia/claim-workflow/pkg/utils"
)

// engineImpl is the concrete implementation of ClaimWorkflow. It holds no
// per-claim state; all state lives in the repository.
type engineImpl struct {
	claims     port.ClaimRepository
	users      port.UserDirectory
	txManager  port.TransactionManager
	clock      port.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics
	dispatcher dispatcher.Dispatcher
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithClock overrides the time source
func WithClock(clock port.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithMetrics enables operation metrics
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithDispatcher publishes claim events after each commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	claims port.ClaimRepository,
	users port.UserDirectory,
	txManager port.TransactionManager,
	opts ...EngineOption,
) ClaimWorkflow {
	e := &engineImpl{
		claims:    claims,
		users:     users,
		txManager: txManager,
		clock:     port.SystemClock{},
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) CreateClaim(ctx context.Context, owner identity.Identity, in entity.ClaimInput) (view entity.ClaimView, err error) {
	defer e.observe("create", time.Now(), &err)

	claim, err := entity.NewClaim(owner, in, e.clock.Now())
	if err != nil {
		return entity.ClaimView{}, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.claims.Create(txCtx, claim)
	})
	if err != nil {
		return entity.ClaimView{}, storageError("create claim", err)
	}

	e.logger.Info("Claim created",
		zap.Int64("claim_id", claim.ID),
		zap.Int64("owner_id", owner.ID),
		zap.String("amount", entity.FormatAmount(claim.Amount)))
	e.publish(ctx, event.NewEvent(event.TypeClaimCreated, claim.ID, owner.ID, claim.CreatedAt))

	return claim.View(), nil
}

func (e *engineImpl) UpdateClaim(ctx context.Context, id int64, owner identity.Identity, in entity.ClaimInput) (view entity.ClaimView, err error) {
	defer e.observe("update", time.Now(), &err)

	claim, err := e.load(ctx, id)
	if err != nil {
		return entity.ClaimView{}, err
	}
	if err := domainwf.AuthorizeOwner(owner, claim.Subject(0)); err != nil {
		return entity.ClaimView{}, err
	}

	expected := claim.Version
	if err := claim.Update(in, e.clock.Now()); err != nil {
		return entity.ClaimView{}, err
	}
	if err := e.save(ctx, claim, expected, requireDraft); err != nil {
		return entity.ClaimView{}, err
	}

	e.logger.Info("Claim updated", zap.Int64("claim_id", claim.ID), zap.Int64("version", claim.Version))
	e.publish(ctx, event.NewEvent(event.TypeClaimUpdated, claim.ID, owner.ID, claim.UpdatedAt))

	return claim.View(), nil
}

func (e *engineImpl) DeleteClaim(ctx context.Context, id int64, owner identity.Identity) (err error) {
	defer e.observe("delete", time.Now(), &err)

	claim, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if err := domainwf.AuthorizeOwner(owner, claim.Subject(0)); err != nil {
		return err
	}
	if err := claim.EnsureDeletable(); err != nil {
		return err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.claims.Delete(txCtx, claim.ID, claim.Version)
	})
	if err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return e.resolveConflict(ctx, claim.ID, requireDraft)
		}
		return storageError("delete claim", err)
	}

	e.logger.Info("Claim deleted", zap.Int64("claim_id", claim.ID))
	e.publish(ctx, event.NewEvent(event.TypeClaimDeleted, claim.ID, owner.ID, e.clock.Now()))

	return nil
}

func (e *engineImpl) Submit(ctx context.Context, id int64, owner identity.Identity) (entity.ClaimView, error) {
	return e.transition(ctx, "submit", id, owner, domainwf.TriggerSubmit, "")
}

func (e *engineImpl) ManagerDecide(ctx context.Context, id int64, manager identity.Identity, approve bool, comment string) (entity.ClaimView, error) {
	if approve {
		return e.transition(ctx, "manager_approve", id, manager, domainwf.TriggerManagerApprove, comment)
	}
	return e.transition(ctx, "manager_reject", id, manager, domainwf.TriggerManagerReject, comment)
}

func (e *engineImpl) FinanceDecide(ctx context.Context, id int64, finance identity.Identity, approve bool, comment string) (entity.ClaimView, error) {
	if approve {
		return e.transition(ctx, "finance_approve", id, finance, domainwf.TriggerFinanceApprove, comment)
	}
	return e.transition(ctx, "finance_reject", id, finance, domainwf.TriggerFinanceReject, comment)
}

func (e *engineImpl) MarkPaid(ctx context.Context, id int64, finance identity.Identity) (entity.ClaimView, error) {
	return e.transition(ctx, "mark_paid", id, finance, domainwf.TriggerMarkPaid, "")
}

// transition runs load, authorize, state check, validation, mutate and commit for one trigger
func (e *engineImpl) transition(ctx context.Context, op string, id int64, actor identity.Identity, trigger domainwf.Trigger, comment string) (view entity.ClaimView, err error) {
	defer e.observe(op, time.Now(), &err)

	claim, err := e.load(ctx, id)
	if err != nil {
		return entity.ClaimView{}, err
	}

	subject, err := e.subject(ctx, claim)
	if err != nil {
		return entity.ClaimView{}, err
	}
	if err := domainwf.Authorize(trigger, actor, subject); err != nil {
		return entity.ClaimView{}, err
	}

	from := claim.Status()
	expected := claim.Version
	if err := claim.Transition(ctx, trigger, actor, comment, e.clock.Now()); err != nil {
		return entity.ClaimView{}, err
	}

	if err := e.save(ctx, claim, expected, requireTrigger(trigger)); err != nil {
		return entity.ClaimView{}, err
	}

	e.logger.Info("Claim transitioned",
		zap.Int64("claim_id", claim.ID),
		zap.Int64("actor_id", actor.ID),
		zap.String("trigger", trigger.String()),
		zap.String("from", from.String()),
		zap.String("to", claim.Status().String()))

	action, _ := entity.ActionFor(trigger)
	e.publish(ctx, event.NewTransition(claim.ID, actor.ID, string(action), from.String(), claim.Status().String(), claim.UpdatedAt))

	return claim.View(), nil
}

func (e *engineImpl) load(ctx context.Context, id int64) (*entity.Claim, error) {
	claim, err := e.claims.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("load claim", err)
	}
	if claim == nil {
		return nil, fmt.Errorf("%w: claim %d", domainwf.ErrNotFound, id)
	}
	return claim, nil
}

// subject resolves the owner's current manager from the directory
func (e *engineImpl) subject(ctx context.Context, claim *entity.Claim) (domainwf.Subject, error) {
	owner, err := e.users.GetByID(ctx, claim.OwnerID)
	if err != nil {
		return domainwf.Subject{}, storageError("load claim owner", err)
	}
	var managerID int64
	if owner != nil {
		managerID = owner.ManagerID
	}
	return claim.Subject(managerID), nil
}

// save commits the claim if nobody else has since the read
func (e *engineImpl) save(ctx context.Context, claim *entity.Claim, expectedVersion int64, precondition func(*entity.Claim) error) error {
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.claims.Save(txCtx, claim, expectedVersion)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, port.ErrVersionConflict) {
		return e.resolveConflict(ctx, claim.ID, precondition)
	}
	return storageError("save claim", err)
}

// resolveConflict re-evaluates the precondition against the winner's state.
// If it no longer holds the caller gets the same rejection a sequential call
// would have produced; otherwise the conflict is reported as retryable.
func (e *engineImpl) resolveConflict(ctx context.Context, id int64, precondition func(*entity.Claim) error) error {
	fresh, err := e.claims.GetByID(ctx, id)
	if err != nil {
		return storageError("reload claim", err)
	}
	if fresh == nil {
		return fmt.Errorf("%w: claim %d", domainwf.ErrNotFound, id)
	}
	if err := precondition(fresh); err != nil {
		return err
	}

	e.logger.Warn("Concurrent claim update", zap.Int64("claim_id", id), zap.Int64("version", fresh.Version))
	return fmt.Errorf("claim %d: %w", id, domainwf.ErrConcurrentUpdate)
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	if rid := utils.RequestIDFromContext(ctx); rid != "" {
		evt = evt.WithRequestID(rid)
	}
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		e.logger.Warn("Event handler failed",
			zap.String("event_type", evt.Type.String()),
			zap.Int64("claim_id", evt.ClaimID),
			zap.Error(err))
	}
}

func (e *engineImpl) observe(op string, start time.Time, errp *error) {
	err := *errp
	outcome := metrics.OutcomeAccepted
	switch {
	case err == nil:
	case errors.Is(err, domainwf.ErrConcurrentUpdate):
		outcome = metrics.OutcomeConflict
	case domainwf.IsRejection(err):
		outcome = metrics.OutcomeRejected
		e.logger.Debug("Claim operation rejected", zap.String("operation", op), zap.Error(err))
	default:
		outcome = metrics.OutcomeError
		e.logger.Error("Claim operation failed", zap.String("operation", op), zap.Error(err))
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
}

func requireDraft(c *entity.Claim) error {
	if !c.IsDraft() {
		return fmt.Errorf("%w: claim %d is %s", domainwf.ErrInvalidState, c.ID, c.Status())
	}
	return nil
}

func requireTrigger(trigger domainwf.Trigger) func(*entity.Claim) error {
	return func(c *entity.Claim) error {
		if !domainwf.BuildClaimStateMachine(c.Status()).CanFire(trigger) {
			return fmt.Errorf("%w: cannot %s a claim in %s", domainwf.ErrInvalidState, trigger, c.Status())
		}
		return nil
	}
}

// storageError marks a repository failure as transient unless it already is a rejection
func storageError(op string, err error) error {
	if domainwf.IsRejection(err) || errors.Is(err, domainwf.ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domainwf.ErrTransient, op, err)
}
