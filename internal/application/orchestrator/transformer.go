package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/executors"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// TransformKeyPrefix prefixes context keys written by the transformer
const TransformKeyPrefix = "transform/"

// TransformerConfig holds transformer configuration
type TransformerConfig struct {
	// SwarmSize is split N/4, N/4, N/2 across the three phases, at least one each
	SwarmSize           int
	LLM                 ports.LLMClient
	CacheSize           int
	Store               *memory.ContextStore
	Metrics             ports.MetricsCollector
	HealthCheckInterval time.Duration
	Logger              *zap.Logger
}

// PhaseReport summarizes one phase of a transformation
type PhaseReport struct {
	Phase     executors.Phase `json:"phase"`
	Workers   int             `json:"workers"`
	Completed int             `json:"completed"`
	Failed    []string        `json:"failed,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// TransformReport summarizes a project transformation
type TransformReport struct {
	Files       int           `json:"files"`
	Transformed []string      `json:"transformed"`
	Phases      []PhaseReport `json:"phases"`
	Duration    time.Duration `json:"duration"`
}

// Transformer modernizes a project through specialized phase pools
type Transformer struct {
	pools  map[executors.Phase]*workers.Pool
	store  *memory.ContextStore
	probe  *latency.Probe
	logger *zap.Logger
}

// NewTransformer creates the phase pools and starts them
func NewTransformer(cfg *TransformerConfig) (*Transformer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("context store is required")
	}
	if cfg.SwarmSize < 1 {
		return nil, fmt.Errorf("%w: got %d", workers.ErrInvalidPoolSize, cfg.SwarmSize)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sizes := PhasePoolSizes(cfg.SwarmSize)
	t := &Transformer{
		pools:  make(map[executors.Phase]*workers.Pool, len(executors.Phases)),
		store:  cfg.Store,
		probe:  latency.NewProbe(cfg.Metrics, logger),
		logger: logger,
	}

	for _, phase := range executors.Phases {
		executor, err := executors.NewTranslation(phase, cfg.LLM, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		pool, err := workers.NewPool(sizes[phase], workers.Uniform(executor), cfg.Metrics,
			logger.With(zap.String("phase", string(phase))), cfg.HealthCheckInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s pool: %w", phase, err)
		}
		if err := pool.Start(); err != nil {
			return nil, err
		}
		t.pools[phase] = pool
	}

	return t, nil
}

// PhasePoolSizes splits a swarm across the phases
func PhasePoolSizes(swarmSize int) map[executors.Phase]int {
	atLeastOne := func(n int) int {
		if n < 1 {
			return 1
		}
		return n
	}
	return map[executors.Phase]int{
		executors.PhaseTypeInference:    atLeastOne(swarmSize / 4),
		executors.PhaseModularization:   atLeastOne(swarmSize / 4),
		executors.PhaseLogicTranslation: atLeastOne(swarmSize / 2),
	}
}

// TransformProject runs every phase over files using stub or LLM output
func (t *Transformer) TransformProject(ctx context.Context, files []string) (*TransformReport, error) {
	sources := make(map[string]string, len(files))
	for _, f := range files {
		sources[f] = ""
	}
	return t.TransformSources(ctx, sources)
}

// TransformSources runs every phase over the given file contents. Files that
// complete all phases are written to the context store under
// TransformKeyPrefix + path, mapping phase to output.
func (t *Transformer) TransformSources(ctx context.Context, sources map[string]string) (*TransformReport, error) {
	start := time.Now()
	defer t.probe.Observe("transform_project", start)

	files := make([]string, 0, len(sources))
	for f := range sources {
		files = append(files, f)
	}
	sort.Strings(files)

	t.logger.Info("starting project transformation", zap.Int("files", len(files)))

	outputs := make(map[string]map[string]interface{}, len(files))
	failed := make(map[string]bool)
	report := &TransformReport{Files: len(files), Transformed: []string{}}

	for _, phase := range executors.Phases {
		pool := t.pools[phase]
		tasks := make([]domain.Task, len(files))
		for i, f := range files {
			tasks[i] = domain.Task{
				domain.TaskFieldID:        f,
				domain.TaskFieldName:      string(phase) + "_" + f,
				executors.TaskFieldFile:   f,
				executors.TaskFieldSource: sources[f],
			}
		}

		phaseStart := time.Now()
		results, err := pool.DispatchBatch(ctx, tasks)
		if err != nil {
			return nil, fmt.Errorf("failed to dispatch %s phase: %w", phase, err)
		}

		pr := PhaseReport{Phase: phase, Workers: pool.Size()}
		for _, r := range results {
			file := fmt.Sprintf("%v", r.TaskID)
			out, ok := r.Payload.(executors.TranslationOutput)
			if r.Failed() || !ok {
				failed[file] = true
				pr.Failed = append(pr.Failed, file)
				continue
			}
			pr.Completed++
			if outputs[file] == nil {
				outputs[file] = make(map[string]interface{}, len(executors.Phases))
			}
			outputs[file][string(phase)] = out.Result
		}
		sort.Strings(pr.Failed)
		pr.Duration = time.Since(phaseStart)
		report.Phases = append(report.Phases, pr)

		t.logger.Info("transformation phase completed",
			zap.String("phase", string(phase)),
			zap.Int("completed", pr.Completed),
			zap.Int("failed", len(pr.Failed)),
			zap.Duration("duration", pr.Duration))
	}

	for _, f := range files {
		if failed[f] {
			continue
		}
		if err := t.store.Update(TransformKeyPrefix+f, outputs[f]); err != nil {
			return nil, fmt.Errorf("failed to store transformation of %s: %w", f, err)
		}
		report.Transformed = append(report.Transformed, f)
	}
	report.Duration = time.Since(start)

	t.logger.Info("project transformation completed",
		zap.Int("transformed", len(report.Transformed)),
		zap.Int("files", report.Files),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// Shutdown shuts down every phase pool
func (t *Transformer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, phase := range executors.Phases {
		if err := t.pools[phase].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s pool: %w", phase, err))
		}
	}
	return errors.Join(errs...)
}
