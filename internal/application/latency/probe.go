// Package latency measures wall-clock duration around an operation and
// surfaces it as a metric and a debug log line. It never alters the result
// or error of the wrapped operation.
package latency

import (
	"time"

	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// Probe records operation latencies
type Probe struct {
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewProbe creates a new latency probe. Nil arguments fall back to no-ops.
func NewProbe(metrics ports.MetricsCollector, logger *zap.Logger) *Probe {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{
		metrics: metrics,
		logger:  logger,
	}
}

// Observe records the time elapsed since start for op and returns it.
// Meant to be deferred: defer probe.Observe("dispatch_batch", time.Now())
func (p *Probe) Observe(op string, start time.Time) time.Duration {
	elapsed := time.Since(start)
	if p == nil {
		return elapsed
	}

	p.metrics.ObserveLatency(op, elapsed)
	p.logger.Debug("operation latency",
		zap.String("operation", op),
		zap.Float64("ms", float64(elapsed.Nanoseconds())/1e6))

	return elapsed
}

// Measure runs fn and records its latency under op
func Measure[T any](p *Probe, op string, fn func() (T, error)) (T, error) {
	defer p.Observe(op, time.Now())
	return fn()
}
