// Package ports defines the interfaces the swarm core depends on. Adapters
// under pkg/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// TaskExecutor runs one task and returns its payload. Implementations must
// not mutate shared state; callers apply whatever the payload describes.
type TaskExecutor interface {
	Execute(ctx context.Context, task domain.Task) (interface{}, error)
}

// ExecutorFunc adapts a plain function to TaskExecutor
type ExecutorFunc func(ctx context.Context, task domain.Task) (interface{}, error)

// Execute implements TaskExecutor
func (f ExecutorFunc) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	return f(ctx, task)
}

// LLMClient generates a completion for a single prompt
type LLMClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// MetricsCollector receives observability data from the core
type MetricsCollector interface {
	ObserveLatency(operation string, duration time.Duration)
	RecordTaskExecuted(status string, duration time.Duration)
	RecordBatchDispatched(size int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	RecordBusPublished(bus string)
	RecordBusDropped(bus, reason string)
	SetQueueDepth(bus string, depth int)
	RecordContextUpdate()
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) ObserveLatency(string, time.Duration) {}
func (NopMetrics) RecordTaskExecuted(string, time.Duration) {}
func (NopMetrics) RecordBatchDispatched(int) {}
func (NopMetrics) RecordWorkerPoolStatus(int, int, int) {}
func (NopMetrics) RecordBusPublished(string) {}
func (NopMetrics) RecordBusDropped(string, string) {}
func (NopMetrics) SetQueueDepth(string, int) {}
func (NopMetrics) RecordContextUpdate() {}
