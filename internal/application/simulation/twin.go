// Package simulation runs agent-based world updates on a worker pool.
package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/executors"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// Defaults for a city twin
const (
	DefaultAgentCount = 100000
	DefaultBatchSize  = 2000
	DefaultPressure   = -0.05
	// GridSpacing is the distance between major roads
	GridSpacing = 300.0
	// WorldSize is the side of the square world
	WorldSize = 2000.0
)

// TwinConfig holds twin engine configuration
type TwinConfig struct {
	AgentCount int
	BatchSize  int
	Pressure   float64
	SwarmSize  int
	Seed       uint64
	Metrics    ports.MetricsCollector
	Logger     *zap.Logger
}

// Agent is the state of one agent in the world
type Agent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Wealth float64 `json:"wealth"`
	Speed  float64 `json:"speed"`
	Type   int     `json:"type"`
}

// StepReport summarizes one world update
type StepReport struct {
	Iteration int           `json:"iteration"`
	Batches   int           `json:"batches"`
	Failed    int           `json:"failed"`
	Updated   int           `json:"updated"`
	AvgSpeed  float64       `json:"avg_speed"`
	Duration  time.Duration `json:"duration"`
}

// TwinEngine owns the agent state and updates it through a dynamics pool.
// State is only written on the goroutine calling UpdateWorld.
type TwinEngine struct {
	cfg    TwinConfig
	pool   *workers.Pool
	probe  *latency.Probe
	logger *zap.Logger

	mu     sync.RWMutex
	agents []Agent
}

// NewTwinEngine places agents on the road grid and starts the dynamics pool
func NewTwinEngine(cfg TwinConfig) (*TwinEngine, error) {
	if cfg.AgentCount <= 0 {
		cfg.AgentCount = DefaultAgentCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SwarmSize <= 0 {
		cfg.SwarmSize = 32
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool, err := workers.NewPool(cfg.SwarmSize, workers.Uniform(executors.NewDynamics()), cfg.Metrics, cfg.Logger, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamics pool: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	agents := make([]Agent, cfg.AgentCount)
	for i := range agents {
		a := Agent{
			X:      rng.Float64() * WorldSize,
			Y:      rng.Float64() * WorldSize,
			Wealth: rng.Float64(),
			Type:   executors.AgentPedestrian,
		}
		// Even agents start on a vertical road, odd ones on a horizontal road
		if i%2 == 0 {
			a.X = float64(int(a.X/GridSpacing)) * GridSpacing
		} else {
			a.Y = float64(int(a.Y/GridSpacing)) * GridSpacing
		}
		if i%executors.VehicleEvery == 0 {
			a.Type = executors.AgentVehicle
		}
		agents[i] = a
	}

	cfg.Logger.Info("twin initialized",
		zap.Int("agents", cfg.AgentCount),
		zap.Int("workers", cfg.SwarmSize))

	return &TwinEngine{
		cfg:    cfg,
		pool:   pool,
		probe:  latency.NewProbe(cfg.Metrics, cfg.Logger),
		logger: cfg.Logger,
		agents: agents,
	}, nil
}

// UpdateWorld dispatches one dynamics task per batch of agents and applies
// the returned deltas. Agents of failed batches keep their previous state.
func (e *TwinEngine) UpdateWorld(ctx context.Context, iteration int) (*StepReport, error) {
	start := time.Now()
	defer e.probe.Observe("update_world", start)

	var tasks []domain.Task
	for i := 0; i < e.cfg.AgentCount; i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, e.cfg.AgentCount)
		tasks = append(tasks, domain.Task{
			domain.TaskFieldID:          fmt.Sprintf("iter_%d_batch_%d", iteration, i),
			domain.TaskFieldComplexity:  1,
			executors.TaskFieldRange:    [2]int{i, end},
			executors.TaskFieldPressure: e.cfg.Pressure,
			executors.TaskFieldSeed:     iteration*e.cfg.AgentCount + i,
		})
	}

	results, err := e.pool.DispatchBatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch world update: %w", err)
	}

	report := &StepReport{Iteration: iteration, Batches: len(tasks)}

	e.mu.Lock()
	for _, r := range results {
		batch, ok := r.Payload.(executors.DynamicsBatch)
		if r.Failed() || !ok {
			report.Failed++
			continue
		}
		for _, d := range batch.Agents {
			a := &e.agents[d.ID]
			a.X += d.DX
			a.Y += d.DY
			a.Wealth += d.WealthDelta
			a.Speed = d.Speed
			report.Updated++
		}
	}
	var total float64
	for _, a := range e.agents {
		total += a.Speed
	}
	e.mu.Unlock()

	report.AvgSpeed = total / float64(len(e.agents))
	report.Duration = time.Since(start)

	e.logger.Info("world updated",
		zap.Int("iteration", iteration),
		zap.Int("batches", report.Batches),
		zap.Int("failed", report.Failed),
		zap.Float64("avg_speed", report.AvgSpeed),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// Agents returns a copy of the agent state
func (e *TwinEngine) Agents() []Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Agent, len(e.agents))
	copy(out, e.agents)
	return out
}

// Shutdown stops the dynamics pool
func (e *TwinEngine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}
