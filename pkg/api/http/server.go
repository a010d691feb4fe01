package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/swarmcore/internal/application/orchestrator"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	pool         *workers.Pool
	store        *memory.ContextStore
	events       *memory.MessageBus
	analyzer     *orchestrator.ImpactAnalyzer
	transformer  *orchestrator.Transformer
	validator    *orchestrator.Validator
	batchTimeout time.Duration
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Pool         *workers.Pool
	Store        *memory.ContextStore
	Events       *memory.MessageBus
	Analyzer     *orchestrator.ImpactAnalyzer
	Transformer  *orchestrator.Transformer
	Validator    *orchestrator.Validator
	Gatherer     prometheus.Gatherer
	BatchTimeout time.Duration
	Logger       *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = orchestrator.NewValidator(0)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(corsMiddleware())
	router.Use(requestLogger(logger))

	s := &Server{
		router:       router,
		pool:         cfg.Pool,
		store:        cfg.Store,
		events:       cfg.Events,
		analyzer:     cfg.Analyzer,
		transformer:  cfg.Transformer,
		validator:    validator,
		batchTimeout: cfg.BatchTimeout,
		logger:       logger,
	}

	s.setupRoutes(cfg.Gatherer)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/workers", s.handleListWorkers)
		v1.POST("/batches", s.handleDispatchBatch)

		v1.GET("/context", s.handleGetContext)
		v1.GET("/context/entry", s.handleGetEntry)
		v1.PUT("/context/entry", s.handlePutEntry)

		v1.POST("/impact", s.handleAnalyzeImpact)
		v1.POST("/transform", s.handleTransform)
	}
}

// SetupWebSocket adds the context stream handler to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleContextStream(*gin.Context)
}) {
	s.router.GET("/api/v1/context/ws", handler.HandleContextStream)
}

// Handler returns the router, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
