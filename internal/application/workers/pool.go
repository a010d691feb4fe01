package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// ExecutorFactory builds the executor owned by the worker at index.
// Returning different executors per index yields a heterogeneous pool.
type ExecutorFactory func(index int) ports.TaskExecutor

// Uniform returns a factory that hands the same executor to every worker
func Uniform(executor ports.TaskExecutor) ExecutorFactory {
	return func(int) ports.TaskExecutor {
		return executor
	}
}

// Pool manages a fixed set of workers and dispatches batches across them
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	probe   *latency.Probe
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*Worker

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
	drained  chan struct{}
}

// NewPool creates a new worker pool with size workers built by factory
func NewPool(
	size int,
	factory ExecutorFactory,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, size)
	}
	if factory == nil {
		return nil, ErrNilExecutor
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &Pool{
		size:    size,
		metrics: metrics,
		probe:   latency.NewProbe(metrics, logger),
		logger:  logger,
		workers: make([]*Worker, size),
	}

	for i := 0; i < size; i++ {
		w, err := NewWorker(i, factory(i), metrics, pool.probe, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		pool.workers[i] = w
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	logger.Info("worker pool initialized", zap.Int("size", size))
	return pool, nil
}

// Start starts the health monitor. Dispatching does not require it.
func (p *Pool) Start() error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	p.health.Start()
	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Size returns the fixed number of workers
func (p *Pool) Size() int {
	return p.size
}

// Health returns the pool health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// DispatchBatch runs every task and blocks until all of them have a result.
// Task i is assigned to worker i mod N. Results come back in completion
// order; correlate them by TaskID, never by position.
func (p *Pool) DispatchBatch(ctx context.Context, tasks []domain.Task) ([]domain.Result, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.RUnlock()
	defer p.inflight.Done()

	defer p.probe.Observe("dispatch_batch", time.Now())
	p.metrics.RecordBatchDispatched(len(tasks))

	if len(tasks) == 0 {
		return []domain.Result{}, nil
	}

	resultCh := make(chan domain.Result, len(tasks))
	var wg sync.WaitGroup

	for i, w := range p.workers {
		if i >= len(tasks) {
			break
		}
		wg.Add(1)
		go func(offset int, w *Worker) {
			defer wg.Done()
			for idx := offset; idx < len(tasks); idx += p.size {
				resultCh <- w.Execute(ctx, tasks[idx])
			}
		}(i, w)
	}

	results := make([]domain.Result, 0, len(tasks))
	for len(results) < len(tasks) {
		results = append(results, <-resultCh)
	}
	wg.Wait()

	p.logger.Debug("batch dispatched",
		zap.Int("tasks", len(tasks)),
		zap.Int("failed", CountFailed(results)))

	return results, nil
}

// Shutdown rejects new batches, waits for in-flight ones and stops the
// workers. It is idempotent: a call that times out can be retried and keeps
// waiting for the same drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.drained = make(chan struct{})
		drained := p.drained
		p.logger.Info("shutting down worker pool")
		p.health.Stop()

		go func() {
			p.inflight.Wait()
			for _, w := range p.workers {
				w.stop()
			}
			close(drained)
		}()
	}
	drained := p.drained
	p.mu.Unlock()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}

	p.logger.Info("worker pool shut down complete")
	return nil
}

// Closed reports whether Shutdown has been called
func (p *Pool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// GetStatus returns the status of all workers keyed by worker id
func (p *Pool) GetStatus() map[string]domain.WorkerStatus {
	status := make(map[string]domain.WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		status[w.id] = w.Status()
	}
	return status
}

// Workers returns a snapshot of every worker in index order
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, len(p.workers))
	for i, w := range p.workers {
		infos[i] = w.Info()
	}
	return infos
}

// CountFailed returns how many results are FAILED
func CountFailed(results []domain.Result) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
