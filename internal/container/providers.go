package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/dispatcher"
	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/application/workflow"
	"github.com/garyjia/claim-workflow/internal/auth"
	"github.com/garyjia/claim-workflow/internal/config"
	"github.com/garyjia/claim-workflow/internal/domain/event"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/claim-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claim-workflow/internal/metrics"
	"github.com/garyjia/claim-workflow/pkg/database"
)

// StorageBundle holds the repositories and the transaction manager for one driver.
// SqlDB is nil for the memory driver.
type StorageBundle struct {
	SqlDB     *sql.DB
	Claims    port.ClaimRepository
	Users     port.UserDirectory
	TxManager port.TransactionManager
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow  workflow.ClaimWorkflow
	Query     service.QueryService
	Directory service.DirectoryService
	Report    service.ReportService
}

// ProvideStorage opens the configured storage driver. For sqlite, pending
// migrations are applied when AutoMigrate is set.
func ProvideStorage(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	switch cfg.Driver {
	case config.DriverMemory:
		return &StorageBundle{
			Claims:    memory.NewClaimRepository(),
			Users:     memory.NewUserDirectory(),
			TxManager: memory.TxManager{},
		}, nil

	case config.DriverSQLite:
		sqlDB, err := database.Open(database.Config{
			Path:            cfg.Path,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			BusyTimeout:     cfg.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}

		if cfg.AutoMigrate {
			if _, err := database.Migrate(ctx, sqlDB, logger); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		db := sqlite.NewDB(sqlDB, logger)
		return &StorageBundle{
			SqlDB:     sqlDB,
			Claims:    sqlite.NewClaimRepository(db, logger),
			Users:     sqlite.NewUserDirectory(db, logger),
			TxManager: db,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// ProvideDispatcher creates the claim event bus with the built-in subscribers:
// transition counters and an audit log line per committed event.
func ProvideDispatcher(logger *zap.Logger, m *metrics.Metrics) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(logger))

	d.Subscribe(event.TypeClaimTransitioned, "metrics", func(_ context.Context, evt *event.Event) error {
		m.IncTransition(evt.ToStatus)
		return nil
	})

	logEvent := func(_ context.Context, evt *event.Event) error {
		logger.Info("Claim event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("claim_id", evt.ClaimID),
			zap.Int64("actor_id", evt.ActorID),
			zap.String("action", evt.Action),
			zap.String("from", evt.FromStatus),
			zap.String("to", evt.ToStatus),
			zap.String("request_id", evt.RequestID))
		return nil
	}
	for _, t := range []event.Type{
		event.TypeClaimCreated,
		event.TypeClaimUpdated,
		event.TypeClaimDeleted,
		event.TypeClaimTransitioned,
	} {
		d.Subscribe(t, "audit-log", logEvent)
	}

	return d
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Clock      port.Clock
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and the application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = port.SystemClock{}
	}

	s := deps.Storage
	engine := workflow.NewEngine(s.Claims, s.Users, s.TxManager,
		workflow.WithClock(clock),
		workflow.WithLogger(deps.Logger.Named("workflow")),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithDispatcher(deps.Dispatcher),
	)

	return &ServiceBundle{
		Workflow:  engine,
		Query:     service.NewQueryService(s.Claims, s.Users, deps.Logger.Named("query")),
		Directory: service.NewDirectoryService(s.Users, s.TxManager, deps.Logger.Named("directory")),
		Report:    service.NewReportService(s.Claims, clock, deps.Logger.Named("report")),
	}, nil
}

// ProvideTokenService creates the bearer token verifier.
func ProvideTokenService(cfg *config.AuthConfig) (*auth.TokenService, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return auth.NewTokenService(cfg.JWTSecret, cfg.Issuer, cfg.Audience), nil
}

// bootstrapAdmin creates an Admin user named name when the directory is empty.
func bootstrapAdmin(ctx context.Context, directory service.DirectoryService, name string, logger *zap.Logger) error {
	if name == "" {
		return nil
	}

	users, err := directory.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	admin, err := directory.CreateUser(ctx, service.NewUser{DisplayName: name, Role: identity.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.Info("Bootstrap admin created",
		zap.Int64("user_id", admin.ID),
		zap.String("display_name", admin.DisplayName))
	return nil
}
