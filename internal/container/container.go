// Package container wires the claims service: storage, event bus, workflow
// engine, application services and token verification, with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/dispatcher"
	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/auth"
	"github.com/garyjia/claim-workflow/internal/config"
	"github.com/garyjia/claim-workflow/internal/metrics"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger
	clock  port.Clock

	storage  *StorageBundle
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	tokens     *auth.TokenService

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customizes a container before Start
type Option func(*Container)

// WithClock overrides the wall clock used by the engine and reports
func WithClock(clock port.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		clock:  port.SystemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components in dependency order:
// 1. Storage (and migrations)
// 2. Metrics registry
// 3. Event dispatcher
// 4. Workflow engine and application services
// 5. Token verifier and bootstrap admin
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization",
		zap.String("driver", c.config.Database.Driver))

	storage, err := ProvideStorage(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = storage
	c.logger.Info("Storage initialized")

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = metrics.New(c.registry)

	c.dispatcher = ProvideDispatcher(c.logger.Named("events"), c.metrics)
	c.logger.Info("Dispatcher initialized")

	services, err := ProvideServices(&ServiceDeps{
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	tokens, err := ProvideTokenService(&c.config.Auth)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	c.tokens = tokens

	if err := bootstrapAdmin(ctx, c.services.Directory, c.config.Auth.BootstrapAdmin, c.logger); err != nil {
		c.teardown()
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() []error {
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.storage != nil && c.storage.SqlDB != nil {
		if err := c.storage.SqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}
	c.storage = nil

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch {
	case c.storage == nil:
		set("database", ComponentHealth{Message: "not initialized"})
	case c.storage.SqlDB == nil:
		set("database", ComponentHealth{Healthy: true, Message: "in-memory"})
	default:
		if err := c.storage.SqlDB.PingContext(ctx); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	}

	if c.services != nil {
		set("workflow", ComponentHealth{Healthy: true})
	} else {
		set("workflow", ComponentHealth{Message: "not initialized"})
	}

	return status
}

// Config returns the loaded configuration
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the root logger
func (c *Container) Logger() *zap.Logger { return c.logger }

// Services returns the application services; nil before Start
func (c *Container) Services() *ServiceBundle { return c.services }

// Tokens returns the bearer token verifier; nil before Start
func (c *Container) Tokens() *auth.TokenService { return c.tokens }

// Metrics returns the service collectors; nil before Start
func (c *Container) Metrics() *metrics.Metrics { return c.metrics }

// Registry returns the Prometheus registry served on the metrics endpoint
func (c *Container) Registry() *prometheus.Registry { return c.registry }

// Users returns the user directory port
func (c *Container) Users() port.UserDirectory {
	if c.storage == nil {
		return nil
	}
	return c.storage.Users
}
