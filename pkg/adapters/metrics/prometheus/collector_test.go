package prometheus

import (
	"testing"
	"time"

	"github.com/aescanero/swarmcore/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var _ ports.MetricsCollector = (*Collector)(nil)

func TestCollector_CountsAndGauges(t *testing.T) {
	c := NewCollector()

	c.RecordTaskExecuted("COMPLETED", 10*time.Millisecond)
	c.RecordTaskExecuted("COMPLETED", 5*time.Millisecond)
	c.RecordTaskExecuted("FAILED", time.Millisecond)
	c.RecordBatchDispatched(3)
	c.RecordWorkerPoolStatus(2, 1, 0)
	c.RecordBusPublished("context")
	c.RecordBusDropped("context", "full")
	c.SetQueueDepth("context", 7)
	c.RecordContextUpdate()
	c.ObserveLatency("dispatch_batch", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasksExecuted.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksExecuted.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchesDispatched))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.busDropped.WithLabelValues("context", "full")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth.WithLabelValues("context")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.contextUpdates))
	assert.Equal(t, 1, testutil.CollectAndCount(c.operationLatency))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RecordContextUpdate()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.contextUpdates))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.contextUpdates))
	assert.NotSame(t, a.Registry(), b.Registry())
}
