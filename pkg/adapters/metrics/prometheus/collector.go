package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	registry *prometheus.Registry

	operationLatency  *prometheus.HistogramVec
	tasksExecuted     *prometheus.CounterVec
	taskDuration      prometheus.Histogram
	batchesDispatched prometheus.Counter
	batchSize         prometheus.Histogram
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	busPublished      *prometheus.CounterVec
	busDropped        *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	contextUpdates    prometheus.Counter
}

// NewCollector creates a collector registered on its own registry, so
// several collectors can coexist in one process (tests, multiple pools).
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarm_operation_latency_seconds",
				Help:    "Wall-clock latency of probed operations",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"operation"},
		),
		tasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_tasks_executed_total",
				Help: "Total number of tasks executed by status",
			},
			[]string{"status"},
		),
		taskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swarm_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		batchesDispatched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "swarm_batches_dispatched_total",
				Help: "Total number of batches dispatched",
			},
		),
		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swarm_batch_size",
				Help:    "Number of tasks per dispatched batch",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarm_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarm_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarm_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		busPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_bus_published_total",
				Help: "Messages accepted by a bus",
			},
			[]string{"bus"},
		),
		busDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_bus_dropped_total",
				Help: "Messages dropped by a full bus",
			},
			[]string{"bus", "reason"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_bus_queue_depth",
				Help: "Current depth of a bus queue",
			},
			[]string{"bus"},
		),
		contextUpdates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "swarm_context_updates_total",
				Help: "Total number of context store writes",
			},
		),
	}
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveLatency records the latency of a probed operation
func (c *Collector) ObserveLatency(operation string, duration time.Duration) {
	c.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTaskExecuted records a task execution
func (c *Collector) RecordTaskExecuted(status string, duration time.Duration) {
	c.tasksExecuted.WithLabelValues(status).Inc()
	c.taskDuration.Observe(duration.Seconds())
}

// RecordBatchDispatched records a batch dispatch
func (c *Collector) RecordBatchDispatched(size int) {
	c.batchesDispatched.Inc()
	c.batchSize.Observe(float64(size))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// RecordBusPublished increments the published count of a bus
func (c *Collector) RecordBusPublished(bus string) {
	c.busPublished.WithLabelValues(bus).Inc()
}

// RecordBusDropped increments the dropped count of a bus
func (c *Collector) RecordBusDropped(bus, reason string) {
	c.busDropped.WithLabelValues(bus, reason).Inc()
}

// SetQueueDepth sets the current depth of a bus queue
func (c *Collector) SetQueueDepth(bus string, depth int) {
	c.queueDepth.WithLabelValues(bus).Set(float64(depth))
}

// RecordContextUpdate increments the context write count
func (c *Collector) RecordContextUpdate() {
	c.contextUpdates.Inc()
}
