// Package http exposes the claim workflow over a JSON API.
// Handlers translate requests into application service calls and map
// workflow errors to status codes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/application/workflow"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/metrics"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
	CORSOrigins     []string
	MetricsPath     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Mode:            gin.ReleaseMode,
		MetricsPath:     "/metrics",
	}
}

// TokenVerifier resolves a bearer token to a user id
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// HealthReporter reports overall health plus a detail payload
type HealthReporter func(ctx context.Context) (healthy bool, details interface{})

// Dependencies are the application components served over HTTP
type Dependencies struct {
	Workflow  workflow.ClaimWorkflow
	Query     service.QueryService
	Directory service.DirectoryService
	Report    service.ReportService
	Users     port.UserDirectory
	Tokens    TokenVerifier
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Health    HealthReporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(metricsMiddleware(s.deps.Metrics))

	if len(s.config.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.config.CORSOrigins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", requestIDHeader)
		corsConfig.ExposeHeaders = []string{requestIDHeader}
		s.router.Use(cors.New(corsConfig))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Gatherer != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api", authMiddleware(s.deps.Tokens, s.deps.Users, s.logger))
	{
		claims := api.Group("/claims")
		claims.POST("", h.CreateClaim)
		claims.GET("/mine", h.ListMine)
		claims.GET("/:id", h.GetClaim)
		claims.PUT("/:id", h.UpdateClaim)
		claims.DELETE("/:id", h.DeleteClaim)
		claims.POST("/:id/submit", h.SubmitClaim)

		manager := api.Group("/manager/claims")
		manager.GET("/pending", h.ListTeamPending)
		manager.POST("/:id/approve", h.ManagerApprove)
		manager.POST("/:id/reject", h.ManagerReject)

		finance := api.Group("/finance")
		finance.GET("/claims/pending", h.ListFinancePending)
		finance.POST("/claims/:id/approve", h.FinanceApprove)
		finance.POST("/claims/:id/reject", h.FinanceReject)
		finance.POST("/claims/:id/pay", h.MarkPaid)
		finance.GET("/reports/claims", h.ExportClaims)

		admin := api.Group("/admin", requireRole(identity.RoleAdmin))
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.PUT("/users/:id/manager", h.SetManager)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
