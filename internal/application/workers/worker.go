package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Worker is a single execution unit wrapping one TaskExecutor
type Worker struct {
	id       string
	index    int
	executor ports.TaskExecutor
	metrics  ports.MetricsCollector
	probe    *latency.Probe
	logger   *zap.Logger

	// slot is held for a whole execution; overlapping batches queue on it
	slot chan struct{}

	mu          sync.RWMutex
	status      domain.WorkerStatus
	lastLatency time.Duration
	lastJob     time.Time
}

// WorkerInfo is a point-in-time view of a worker
type WorkerInfo struct {
	ID          string              `json:"id"`
	Index       int                 `json:"index"`
	Status      domain.WorkerStatus `json:"status"`
	LastLatency time.Duration       `json:"last_latency"`
	LastJob     time.Time           `json:"last_job"`
}

// NewWorker creates an idle worker with a short stable id
func NewWorker(index int, executor ports.TaskExecutor, metrics ports.MetricsCollector, probe *latency.Probe, logger *zap.Logger) (*Worker, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		id:       uuid.New().String()[:8],
		index:    index,
		executor: executor,
		metrics:  metrics,
		probe:    probe,
		logger:   logger,
		slot:     make(chan struct{}, 1),
		status:   domain.WorkerStatusIdle,
		lastJob:  time.Now(),
	}, nil
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// Status returns the current worker status
func (w *Worker) Status() domain.WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Info returns a snapshot of the worker state
func (w *Worker) Info() WorkerInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerInfo{
		ID:          w.id,
		Index:       w.index,
		Status:      w.status,
		LastLatency: w.lastLatency,
		LastJob:     w.lastJob,
	}
}

// Execute runs a task and always returns a Result. Executor errors and panics
// become FAILED results; the worker returns to IDLE on every path.
//
// A worker runs one task at a time. Callers sharing a worker wait for it, or
// get a FAILED result if ctx ends first.
func (w *Worker) Execute(ctx context.Context, task domain.Task) (result domain.Result) {
	select {
	case w.slot <- struct{}{}:
	case <-ctx.Done():
		return w.failed(task, ctx.Err())
	}
	defer func() { <-w.slot }()

	startTime := time.Now()

	w.mu.Lock()
	w.status = domain.WorkerStatusBusy
	w.lastJob = startTime
	w.mu.Unlock()

	defer func() {
		duration := w.probe.Observe("worker_execute", startTime)
		result.Duration = duration

		w.mu.Lock()
		if w.status == domain.WorkerStatusBusy {
			w.status = domain.WorkerStatusIdle
		}
		w.lastLatency = duration
		w.mu.Unlock()

		w.metrics.RecordTaskExecuted(string(result.Status), duration)
	}()

	defer func() {
		if r := recover(); r != nil {
			result = w.failed(task, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
		}
	}()

	result = domain.Result{
		WorkerID: w.id,
		TaskID:   task.ID(),
	}

	if err := ctx.Err(); err != nil {
		return w.failed(task, err)
	}

	payload, err := w.executor.Execute(ctx, task)
	if err != nil {
		return w.failed(task, err)
	}

	result.Status = domain.TaskStatusCompleted
	result.Payload = payload
	return result
}

// failed builds a FAILED result carrying a TaskError diagnostic
func (w *Worker) failed(task domain.Task, err error) domain.Result {
	taskErr := NewTaskError(task.ID(), w.id, err)

	w.logger.Warn("task failed",
		zap.String("worker_id", w.id),
		zap.Any("task_id", task.ID()),
		zap.Error(err))

	return domain.Result{
		WorkerID: w.id,
		TaskID:   task.ID(),
		Status:   domain.TaskStatusFailed,
		Error:    taskErr.Error(),
	}
}

// stop marks the worker as stopped
func (w *Worker) stop() {
	w.mu.Lock()
	w.status = domain.WorkerStatusStopped
	w.mu.Unlock()
}
