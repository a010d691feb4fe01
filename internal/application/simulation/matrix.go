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

// Defaults for a sentiment matrix
const (
	DefaultPopulation     = 10000
	DefaultPersonaBatch   = 500
	DefaultInitialShock   = 30.0
	ShockDecayPerStep     = 2.0
	CriticalSentiment     = 50.0
	TippingPointSentiment = 30.0
)

// Sentiment status labels
const (
	StatusStable       = "STABLE"
	StatusCritical     = "CRITICAL"
	StatusTippingPoint = "TIPPING_POINT"
)

// MatrixConfig holds sentiment matrix configuration
type MatrixConfig struct {
	Population int
	BatchSize  int
	SwarmSize  int
	Seed       uint64
	Metrics    ports.MetricsCollector
	Logger     *zap.Logger
}

// Persona is one member of the population. Every persona starts at full
// sentiment and listens to 5-10 random peers.
type Persona struct {
	ID               int     `json:"id"`
	Loyalty          float64 `json:"loyalty"`
	Influence        float64 `json:"influence"`
	CriticalThinking float64 `json:"critical_thinking"`
	Sentiment        float64 `json:"sentiment"`
	Neighbors        []int   `json:"neighbors"`
}

// SentimentReport summarizes one time step
type SentimentReport struct {
	Step         int           `json:"step"`
	Pressure     float64       `json:"pressure"`
	Batches      int           `json:"batches"`
	Failed       int           `json:"failed"`
	AvgSentiment float64       `json:"avg_sentiment"`
	Status       string        `json:"status"`
	Duration     time.Duration `json:"duration"`
}

// MatrixEngine runs sentiment propagation over a persona population on a
// sentiment pool. Steps are synchronous: every batch reads the previous
// step, and the caller goroutine applies the results.
type MatrixEngine struct {
	cfg    MatrixConfig
	pool   *workers.Pool
	probe  *latency.Probe
	logger *zap.Logger

	mu         sync.RWMutex
	population []Persona
	neighbors  [][]int
	history    []float64
}

// NewMatrixEngine generates the population and its influence mesh
func NewMatrixEngine(cfg MatrixConfig) (*MatrixEngine, error) {
	if cfg.Population <= 0 {
		cfg.Population = DefaultPopulation
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPersonaBatch
	}
	if cfg.SwarmSize <= 0 {
		cfg.SwarmSize = 32
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool, err := workers.NewPool(cfg.SwarmSize, workers.Uniform(executors.NewSentiment()), cfg.Metrics, cfg.Logger, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentiment pool: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5bd1e995))
	population := make([]Persona, cfg.Population)
	neighbors := make([][]int, cfg.Population)
	for i := range population {
		peers := make([]int, 5+rng.IntN(6))
		for j := range peers {
			peers[j] = rng.IntN(cfg.Population)
		}
		neighbors[i] = peers
		population[i] = Persona{
			ID:               i,
			Loyalty:          rng.Float64() * 100,
			Influence:        1 + rng.Float64()*9,
			CriticalThinking: rng.Float64() * 100,
			Sentiment:        executors.SentimentMax,
			Neighbors:        peers,
		}
	}

	cfg.Logger.Info("persona population generated",
		zap.Int("personas", cfg.Population),
		zap.Int("workers", cfg.SwarmSize))

	return &MatrixEngine{
		cfg:        cfg,
		pool:       pool,
		probe:      latency.NewProbe(cfg.Metrics, cfg.Logger),
		logger:     cfg.Logger,
		population: population,
		neighbors:  neighbors,
	}, nil
}

// RunTimeStep propagates sentiment once under the given external pressure.
// Personas of failed batches keep their previous sentiment.
func (e *MatrixEngine) RunTimeStep(ctx context.Context, step int, pressure float64) (*SentimentReport, error) {
	start := time.Now()
	defer e.probe.Observe("sentiment_step", start)

	e.mu.RLock()
	previous := make([]float64, len(e.population))
	for i, p := range e.population {
		previous[i] = p.Sentiment
	}
	e.mu.RUnlock()

	var tasks []domain.Task
	for i := 0; i < len(previous); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(previous))
		tasks = append(tasks, domain.Task{
			domain.TaskFieldID:            fmt.Sprintf("step_%d_batch_%d", step, i),
			domain.TaskFieldComplexity:    1,
			executors.TaskFieldRange:      [2]int{i, end},
			executors.TaskFieldPressure:   pressure,
			executors.TaskFieldSentiments: previous,
			executors.TaskFieldNeighbors:  e.neighbors,
		})
	}

	results, err := e.pool.DispatchBatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch sentiment step: %w", err)
	}

	report := &SentimentReport{Step: step, Pressure: pressure, Batches: len(tasks)}

	e.mu.Lock()
	for _, r := range results {
		batch, ok := r.Payload.(executors.SentimentBatch)
		if r.Failed() || !ok {
			report.Failed++
			continue
		}
		for k, s := range batch.Sentiments {
			e.population[batch.Start+k].Sentiment = s
		}
	}
	var total float64
	for _, p := range e.population {
		total += p.Sentiment
	}
	report.AvgSentiment = total / float64(len(e.population))
	e.history = append(e.history, report.AvgSentiment)
	e.mu.Unlock()

	report.Status = sentimentStatus(report.AvgSentiment)
	report.Duration = time.Since(start)

	e.logger.Info("sentiment step completed",
		zap.Int("step", step),
		zap.Float64("pressure", pressure),
		zap.Float64("avg_sentiment", report.AvgSentiment),
		zap.String("status", report.Status),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// SimulateCrisis applies an external shock that decays by ShockDecayPerStep
// each step and stops early once the tipping point is reached.
func (e *MatrixEngine) SimulateCrisis(ctx context.Context, steps int, initialShock float64) ([]SentimentReport, error) {
	var reports []SentimentReport
	for i := 0; i < steps; i++ {
		pressure := max(0, initialShock-float64(i)*ShockDecayPerStep)

		report, err := e.RunTimeStep(ctx, i, pressure)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *report)

		if report.Status == StatusTippingPoint {
			e.logger.Warn("tipping point reached",
				zap.Int("step", i),
				zap.Float64("avg_sentiment", report.AvgSentiment))
			break
		}
	}
	return reports, nil
}

func sentimentStatus(avg float64) string {
	switch {
	case avg < TippingPointSentiment:
		return StatusTippingPoint
	case avg < CriticalSentiment:
		return StatusCritical
	default:
		return StatusStable
	}
}

// History returns the average sentiment after every step
func (e *MatrixEngine) History() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]float64, len(e.history))
	copy(out, e.history)
	return out
}

// Population returns a copy of the personas
func (e *MatrixEngine) Population() []Persona {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Persona, len(e.population))
	copy(out, e.population)
	return out
}

// Shutdown stops the sentiment pool
func (e *MatrixEngine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}
