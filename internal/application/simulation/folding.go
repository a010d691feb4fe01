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

// Defaults for a folding chain
const (
	DefaultResidues     = 500
	DefaultResidueBatch = 200
	DefaultTimeStep     = 0.01
	DefaultDamping      = 0.9
	DefaultMaxForce     = 100.0
)

// FoldingConfig holds folding engine configuration
type FoldingConfig struct {
	Residues  int
	BatchSize int
	SwarmSize int
	TimeStep  float64
	Damping   float64
	MaxForce  float64
	Seed      uint64
	Metrics   ports.MetricsCollector
	Logger    *zap.Logger
}

// FoldingReport summarizes one integration step
type FoldingReport struct {
	Iteration int           `json:"iteration"`
	Batches   int           `json:"batches"`
	Failed    int           `json:"failed"`
	Updated   int           `json:"updated"`
	MaxForce  float64       `json:"max_force"`
	Duration  time.Duration `json:"duration"`
}

// FoldingEngine integrates a residue chain. Forces come from a chain force
// pool; clipping, integration and re-centering happen on the caller.
type FoldingEngine struct {
	cfg    FoldingConfig
	pool   *workers.Pool
	probe  *latency.Probe
	logger *zap.Logger

	mu         sync.RWMutex
	positions  []executors.Vec3
	velocities []executors.Vec3
}

// NewFoldingEngine starts the chain as a random coil around the origin
func NewFoldingEngine(cfg FoldingConfig) (*FoldingEngine, error) {
	if cfg.Residues <= 0 {
		cfg.Residues = DefaultResidues
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultResidueBatch
	}
	if cfg.SwarmSize <= 0 {
		cfg.SwarmSize = 32
	}
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = DefaultTimeStep
	}
	if cfg.Damping <= 0 {
		cfg.Damping = DefaultDamping
	}
	if cfg.MaxForce <= 0 {
		cfg.MaxForce = DefaultMaxForce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool, err := workers.NewPool(cfg.SwarmSize, workers.Uniform(executors.NewChainForces()), cfg.Metrics, cfg.Logger, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain force pool: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x27d4eb2f))
	positions := make([]executors.Vec3, cfg.Residues)
	var walk executors.Vec3
	for i := range positions {
		walk = walk.Add(executors.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
		positions[i] = walk
	}
	recenter(positions)

	cfg.Logger.Info("chain initialized",
		zap.Int("residues", cfg.Residues),
		zap.Int("workers", cfg.SwarmSize))

	return &FoldingEngine{
		cfg:        cfg,
		pool:       pool,
		probe:      latency.NewProbe(cfg.Metrics, cfg.Logger),
		logger:     cfg.Logger,
		positions:  positions,
		velocities: make([]executors.Vec3, cfg.Residues),
	}, nil
}

// Step computes forces on every residue and integrates one time step.
// Residues of failed batches keep their position and velocity.
func (e *FoldingEngine) Step(ctx context.Context, iteration int) (*FoldingReport, error) {
	start := time.Now()
	defer e.probe.Observe("folding_step", start)

	e.mu.RLock()
	snapshot := make([]executors.Vec3, len(e.positions))
	copy(snapshot, e.positions)
	e.mu.RUnlock()

	var tasks []domain.Task
	for i := 0; i < len(snapshot); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(snapshot))
		tasks = append(tasks, domain.Task{
			domain.TaskFieldID:           fmt.Sprintf("fold_%d_batch_%d", iteration, i),
			executors.TaskFieldRange:     [2]int{i, end},
			executors.TaskFieldPositions: snapshot,
			executors.TaskFieldSeed:      iteration*len(snapshot) + i,
		})
	}

	results, err := e.pool.DispatchBatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch folding step: %w", err)
	}

	report := &FoldingReport{Iteration: iteration, Batches: len(tasks)}
	dt := e.cfg.TimeStep

	e.mu.Lock()
	for _, r := range results {
		batch, ok := r.Payload.(executors.ForceBatch)
		if r.Failed() || !ok {
			report.Failed++
			continue
		}
		for _, rf := range batch.Forces {
			force := rf.Force
			if mag := force.Norm(); mag > e.cfg.MaxForce {
				force = force.Scale(e.cfg.MaxForce / mag)
			}
			report.MaxForce = max(report.MaxForce, force.Norm())

			v := e.velocities[rf.ID].Add(force.Scale(dt)).Scale(e.cfg.Damping)
			e.velocities[rf.ID] = v
			e.positions[rf.ID] = e.positions[rf.ID].Add(v.Scale(dt))
			report.Updated++
		}
	}
	recenter(e.positions)
	e.mu.Unlock()

	report.Duration = time.Since(start)

	e.logger.Debug("folding step completed",
		zap.Int("iteration", iteration),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Float64("max_force", report.MaxForce),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// recenter moves the centroid of positions to the origin
func recenter(positions []executors.Vec3) {
	if len(positions) == 0 {
		return
	}
	var centroid executors.Vec3
	for _, p := range positions {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(positions)))
	for i := range positions {
		positions[i] = positions[i].Sub(centroid)
	}
}

// Positions returns a copy of the residue positions
func (e *FoldingEngine) Positions() []executors.Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]executors.Vec3, len(e.positions))
	copy(out, e.positions)
	return out
}

// Shutdown stops the chain force pool
func (e *FoldingEngine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}
