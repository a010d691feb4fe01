package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/internal/application/orchestrator"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/internal/config"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/adapters/events/redis"
	"github.com/aescanero/swarmcore/pkg/adapters/llm"
	"github.com/aescanero/swarmcore/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/swarmcore/pkg/adapters/storage/s3"
	"github.com/aescanero/swarmcore/pkg/api/grpc"
	"github.com/aescanero/swarmcore/pkg/api/http"
	"github.com/aescanero/swarmcore/pkg/api/websocket"
	"github.com/aescanero/swarmcore/pkg/executors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting swarm core",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	metricsCollector := prometheus.NewCollector()

	overflow, err := memory.ParseOverflowPolicy(cfg.Bus.Overflow)
	if err != nil {
		logger.Fatal("invalid bus overflow policy", zap.Error(err))
	}

	// Message buses
	contextStore, err := memory.NewContextStore(&memory.BusConfig{
		Capacity:       cfg.Bus.ContextCapacity,
		Overflow:       overflow,
		PublishTimeout: cfg.Bus.PublishTimeout,
		Metrics:        metricsCollector,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create context store", zap.Error(err))
	}

	swarmBus, err := memory.NewMessageBus(&memory.BusConfig{
		Name:           "swarm",
		Capacity:       cfg.Bus.SwarmCapacity,
		Overflow:       overflow,
		PublishTimeout: cfg.Bus.PublishTimeout,
		Metrics:        metricsCollector,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create swarm bus", zap.Error(err))
	}

	// Optional adapters
	llmClient, err := llm.NewClient(&llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.RequestTimeout,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}
	if llmClient == nil {
		logger.Info("no LLM API key configured, translation runs in stub mode")
	}

	var redisClient *goredis.Client
	var relay *redis.StreamsRelay
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		relay, err = redis.NewStreamsRelay(redisClient, cfg.Redis.Stream, cfg.Redis.MaxLen, logger)
		if err != nil {
			logger.Fatal("failed to create stream relay", zap.Error(err))
		}
	}

	var exporter *s3.SnapshotExporter
	if cfg.Snapshot.Endpoint != "" {
		exporter, err = s3.NewSnapshotExporter(s3.Config{
			Endpoint:  cfg.Snapshot.Endpoint,
			Region:    cfg.Snapshot.Region,
			AccessKey: cfg.Snapshot.AccessKey,
			SecretKey: cfg.Snapshot.SecretKey,
			Bucket:    cfg.Snapshot.Bucket,
			Prefix:    cfg.Snapshot.Prefix,
			UseSSL:    cfg.Snapshot.UseSSL,
		}, contextStore, logger)
		if err != nil {
			logger.Fatal("failed to create snapshot exporter", zap.Error(err))
		}
	}

	// Worker pools
	workerPool, err := workers.NewPool(
		cfg.Workers.PoolSize,
		workers.Uniform(executors.NewEcho(cfg.Workers.EchoUnit)),
		metricsCollector,
		logger.With(zap.String("pool", "batch")),
		cfg.Workers.HealthCheckInterval,
	)
	if err != nil {
		logger.Fatal("failed to create worker pool", zap.Error(err))
	}
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	analyzerPool, err := workers.NewPool(
		cfg.Workers.AnalyzerPoolSize,
		workers.Uniform(executors.NewImpactAudit()),
		metricsCollector,
		logger.With(zap.String("pool", "impact")),
		cfg.Workers.HealthCheckInterval,
	)
	if err != nil {
		logger.Fatal("failed to create analyzer pool", zap.Error(err))
	}
	if err := analyzerPool.Start(); err != nil {
		logger.Fatal("failed to start analyzer pool", zap.Error(err))
	}

	transformer, err := orchestrator.NewTransformer(&orchestrator.TransformerConfig{
		SwarmSize:           cfg.Workers.PoolSize,
		LLM:                 llmClient,
		CacheSize:           cfg.LLM.CacheSize,
		Store:               contextStore,
		Metrics:             metricsCollector,
		HealthCheckInterval: cfg.Workers.HealthCheckInterval,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("failed to create transformer", zap.Error(err))
	}

	analyzer := orchestrator.NewImpactAnalyzer(
		analyzerPool,
		contextStore,
		latency.NewProbe(metricsCollector, logger),
		logger,
	)

	// Fan bus messages out to WebSocket clients and the Redis relay
	hub := websocket.NewHub(0, logger)
	sinks := []memory.Sink{hub.Sink()}
	if relay != nil {
		sinks = append(sinks, relay.Sink())
	}

	var pumps sync.WaitGroup
	pumpCtx, stopPumps := context.WithCancel(context.Background())
	for _, bus := range []*memory.MessageBus{contextStore.MessageBus, swarmBus} {
		pumps.Add(1)
		go func(bus *memory.MessageBus) {
			defer pumps.Done()
			memory.Pump(pumpCtx, bus, cfg.Bus.SubscribeTimeout, sinks...)
		}(bus)
	}

	exportCtx, stopExport := context.WithCancel(context.Background())
	exportDone := make(chan struct{})
	if exporter != nil {
		go func() {
			defer close(exportDone)
			exporter.Run(exportCtx, cfg.Snapshot.Interval)
		}()
	} else {
		close(exportDone)
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Pool:         workerPool,
		Store:        contextStore,
		Events:       swarmBus,
		Analyzer:     analyzer,
		Transformer:  transformer,
		Validator:    orchestrator.NewValidator(0),
		Gatherer:     metricsCollector.Registry(),
		BatchTimeout: cfg.Timeouts.BatchTimeout,
		Logger:       logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(hub, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}
	grpcServer.WatchPool(workerPool.Health())

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("swarm core started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("bus_overflow", string(overflow)),
		zap.Bool("redis_relay", relay != nil),
		zap.Bool("snapshot_export", exporter != nil))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := analyzerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("analyzer pool shutdown error", zap.Error(err))
	}

	if err := transformer.Shutdown(shutdownCtx); err != nil {
		logger.Error("transformer shutdown error", zap.Error(err))
	}

	// Stopped buses drain to their sinks before the pumps exit
	contextStore.Stop()
	swarmBus.Stop()
	pumpsDone := make(chan struct{})
	go func() {
		pumps.Wait()
		close(pumpsDone)
	}()
	select {
	case <-pumpsDone:
	case <-shutdownCtx.Done():
		logger.Warn("bus drain interrupted by shutdown timeout")
	}
	stopPumps()
	hub.Close()

	stopExport()
	<-exportDone

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("swarm core shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
