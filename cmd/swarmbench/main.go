package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aescanero/swarmcore/internal/application/orchestrator"
	"github.com/aescanero/swarmcore/internal/application/simulation"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/executors"

	"go.uber.org/zap"
)

var (
	mode       = flag.String("mode", "batch", "Benchmark: batch, transform, twin, sentiment, fold")
	poolSizes  = flag.String("pools", "4,16,64", "Comma separated worker pool sizes (batch mode)")
	tasks      = flag.Int("tasks", 10000, "Tasks per batch (batch mode)")
	unit       = flag.Duration("unit", time.Millisecond, "Simulated work per complexity unit (batch mode)")
	files      = flag.Int("files", 500, "Files to transform (transform mode)")
	swarmSize  = flag.Int("swarm", 32, "Swarm size (transform, twin, sentiment and fold modes)")
	agents     = flag.Int("agents", simulation.DefaultAgentCount, "Agent count (twin mode)")
	iterations = flag.Int("iter", 10, "World updates (twin and fold modes)")
	population = flag.Int("population", simulation.DefaultPopulation, "Personas (sentiment mode)")
	steps      = flag.Int("steps", 20, "Crisis steps (sentiment mode)")
	residues   = flag.Int("residues", simulation.DefaultResidues, "Chain length (fold mode)")
	verbose    = flag.Bool("verbose", false, "Log pool internals")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	internal := zap.NewNop()
	if *verbose {
		internal = logger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "batch":
		err = runBatch(ctx, logger, internal)
	case "transform":
		err = runTransform(ctx, logger, internal)
	case "twin":
		err = runTwin(ctx, logger, internal)
	case "sentiment":
		err = runSentiment(ctx, logger, internal)
	case "fold":
		err = runFold(ctx, logger, internal)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		logger.Fatal("benchmark failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func parsePoolSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid pool size %q", part)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no pool sizes given")
	}
	return sizes, nil
}

// runBatch dispatches the same echo batch on pools of increasing size
func runBatch(ctx context.Context, logger, internal *zap.Logger) error {
	sizes, err := parsePoolSizes(*poolSizes)
	if err != nil {
		return err
	}

	batch := make([]domain.Task, *tasks)
	for i := range batch {
		batch[i] = domain.Task{
			domain.TaskFieldID:         i,
			domain.TaskFieldName:       fmt.Sprintf("Task_%d", i),
			domain.TaskFieldComplexity: 1 + i%3,
		}
	}

	for _, size := range sizes {
		pool, err := workers.NewPool(size, workers.Uniform(executors.NewEcho(*unit)), nil, internal, 0)
		if err != nil {
			return err
		}

		start := time.Now()
		results, err := pool.DispatchBatch(ctx, batch)
		elapsed := time.Since(start)
		_ = pool.Shutdown(context.Background())
		if err != nil {
			return err
		}

		logger.Info("batch complete",
			zap.Int("workers", size),
			zap.Int("tasks", len(results)),
			zap.Int("failed", workers.CountFailed(results)),
			zap.Duration("total", elapsed),
			zap.Float64("tasks_per_sec", float64(len(results))/elapsed.Seconds()),
			zap.Duration("avg_latency", elapsed/time.Duration(max(len(results), 1))))
	}
	return nil
}

// runTransform pushes a synthetic project through the three translation phases
func runTransform(ctx context.Context, logger, internal *zap.Logger) error {
	store, err := memory.NewContextStore(&memory.BusConfig{Logger: internal})
	if err != nil {
		return err
	}
	defer store.Stop()

	transformer, err := orchestrator.NewTransformer(&orchestrator.TransformerConfig{
		SwarmSize: *swarmSize,
		Store:     store,
		Logger:    internal,
	})
	if err != nil {
		return err
	}
	defer func() { _ = transformer.Shutdown(context.Background()) }()

	paths := make([]string, *files)
	for i := range paths {
		paths[i] = fmt.Sprintf("legacy_file_%d.js", i)
	}

	report, err := transformer.TransformProject(ctx, paths)
	if err != nil {
		return err
	}

	logger.Info("transform complete",
		zap.Int("files", len(paths)),
		zap.Int("transformed", len(report.Transformed)),
		zap.Int("stored", store.Entries()),
		zap.Duration("total", report.Duration),
		zap.Float64("files_per_sec", float64(len(paths))/report.Duration.Seconds()))
	return nil
}

// runTwin steps the city twin and reports agent throughput per update
func runTwin(ctx context.Context, logger, internal *zap.Logger) error {
	engine, err := simulation.NewTwinEngine(simulation.TwinConfig{
		AgentCount: *agents,
		Pressure:   simulation.DefaultPressure,
		SwarmSize:  *swarmSize,
		Logger:     internal,
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Shutdown(context.Background()) }()

	start := time.Now()
	steps := 0
	for i := 0; i < *iterations; i++ {
		if ctx.Err() != nil {
			logger.Warn("interrupted", zap.Int("completed", steps))
			break
		}
		report, err := engine.UpdateWorld(ctx, i)
		if err != nil {
			return err
		}
		steps++
		logger.Info("world step",
			zap.Int("step", i+1),
			zap.Int("updated", report.Updated),
			zap.Float64("avg_speed", report.AvgSpeed),
			zap.Duration("latency", report.Duration),
			zap.Float64("agents_per_sec", float64(report.Updated)/report.Duration.Seconds()))
	}

	elapsed := time.Since(start)
	if steps > 0 {
		logger.Info("twin complete",
			zap.Int("agents", *agents),
			zap.Int("steps", steps),
			zap.Int("interactions", *agents*steps),
			zap.Float64("agents_per_sec", float64(*agents*steps)/elapsed.Seconds()))
	}
	return nil
}

// runSentiment drives a persona population through a decaying crisis
func runSentiment(ctx context.Context, logger, internal *zap.Logger) error {
	engine, err := simulation.NewMatrixEngine(simulation.MatrixConfig{
		Population: *population,
		SwarmSize:  *swarmSize,
		Logger:     internal,
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Shutdown(context.Background()) }()

	start := time.Now()
	reports, err := engine.SimulateCrisis(ctx, *steps, simulation.DefaultInitialShock)
	if err != nil {
		return err
	}
	for _, r := range reports {
		logger.Info("sentiment step",
			zap.Int("step", r.Step),
			zap.Float64("pressure", r.Pressure),
			zap.Float64("avg_sentiment", r.AvgSentiment),
			zap.String("status", r.Status),
			zap.Duration("latency", r.Duration))
	}

	elapsed := time.Since(start)
	logger.Info("sentiment complete",
		zap.Int("personas", *population),
		zap.Int("steps", len(reports)),
		zap.Float64("personas_per_sec", float64(*population*len(reports))/elapsed.Seconds()))
	return nil
}

// runFold integrates a residue chain and reports residues per second
func runFold(ctx context.Context, logger, internal *zap.Logger) error {
	engine, err := simulation.NewFoldingEngine(simulation.FoldingConfig{
		Residues:  *residues,
		SwarmSize: *swarmSize,
		Logger:    internal,
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Shutdown(context.Background()) }()

	start := time.Now()
	done := 0
	for i := 0; i < *iterations; i++ {
		if ctx.Err() != nil {
			logger.Warn("interrupted", zap.Int("completed", done))
			break
		}
		report, err := engine.Step(ctx, i)
		if err != nil {
			return err
		}
		done++
		logger.Info("folding step",
			zap.Int("iteration", i+1),
			zap.Int("updated", report.Updated),
			zap.Float64("max_force", report.MaxForce),
			zap.Duration("latency", report.Duration))
	}

	elapsed := time.Since(start)
	if done > 0 {
		logger.Info("fold complete",
			zap.Int("residues", *residues),
			zap.Int("iterations", done),
			zap.Float64("residues_per_sec", float64(*residues*done)/elapsed.Seconds()))
	}
	return nil
}
