package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoExecutor() ports.TaskExecutor {
	return ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
		time.Sleep(time.Millisecond * time.Duration(task.Complexity()))
		return "Processed " + task.Name(), nil
	})
}

func newTestPool(t *testing.T, size int, executor ports.TaskExecutor) *Pool {
	t.Helper()
	pool, err := NewPool(size, Uniform(executor), nil, nil, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	return pool
}

func makeTasks(n int) []domain.Task {
	tasks := make([]domain.Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = domain.Task{"id": i, "name": "Task", "complexity": 1}
	}
	return tasks
}

func idSet(results []domain.Result) map[interface{}]bool {
	ids := make(map[interface{}]bool, len(results))
	for _, r := range results {
		ids[r.TaskID] = true
	}
	return ids
}

func TestDispatchBatch_TenTasksOnFourWorkers(t *testing.T) {
	pool := newTestPool(t, 4, echoExecutor())

	results, err := pool.DispatchBatch(context.Background(), makeTasks(10))
	require.NoError(t, err)
	require.Len(t, results, 10)

	ids := idSet(results)
	for i := 0; i < 10; i++ {
		assert.True(t, ids[i], "missing result for task %d", i)
	}
	for _, r := range results {
		assert.Equal(t, domain.TaskStatusCompleted, r.Status)
		assert.Equal(t, "Processed Task", r.Payload)
	}
}

func TestDispatchBatch_OneFailureIsIsolated(t *testing.T) {
	executor := ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
		if task.ID() == 2 {
			return nil, errors.New("configured to fail")
		}
		return "ok", nil
	})
	pool := newTestPool(t, 2, executor)

	results, err := pool.DispatchBatch(context.Background(), makeTasks(5))
	require.NoError(t, err)
	require.Len(t, results, 5)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			assert.Equal(t, 2, r.TaskID)
			assert.Contains(t, r.Error, "configured to fail")
			assert.Nil(t, r.Payload)
		} else {
			assert.Equal(t, domain.TaskStatusCompleted, r.Status)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, CountFailed(results))
}

func TestDispatchBatch_PanicBecomesFailedAndWorkerReturnsIdle(t *testing.T) {
	executor := ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
		if task.ID() == 0 {
			panic("kernel exploded")
		}
		return "ok", nil
	})
	pool := newTestPool(t, 1, executor)

	results, err := pool.DispatchBatch(context.Background(), makeTasks(3))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, CountFailed(results))

	for _, r := range results {
		if r.Failed() {
			assert.Contains(t, r.Error, ErrTaskPanicked.Error())
			assert.Contains(t, r.Error, "kernel exploded")
		}
	}
	for _, status := range pool.GetStatus() {
		assert.Equal(t, domain.WorkerStatusIdle, status)
	}
}

func TestDispatchBatch_AfterShutdownFailsFast(t *testing.T) {
	pool := newTestPool(t, 2, echoExecutor())
	require.NoError(t, pool.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := pool.DispatchBatch(context.Background(), makeTasks(3))
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("dispatch after shutdown hung")
	}

	// Idempotent
	assert.NoError(t, pool.Shutdown(context.Background()))
	assert.True(t, pool.Closed())
	for _, status := range pool.GetStatus() {
		assert.Equal(t, domain.WorkerStatusStopped, status)
	}
}

func TestDispatchBatch_WorkerIDsStableAcrossBatches(t *testing.T) {
	pool := newTestPool(t, 3, echoExecutor())

	before := pool.Workers()
	for i := 0; i < 3; i++ {
		_, err := pool.DispatchBatch(context.Background(), makeTasks(7))
		require.NoError(t, err)
	}
	after := pool.Workers()

	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Len(t, after[i].ID, 8)
	}
}

func TestDispatchBatch_RoundRobinAssignment(t *testing.T) {
	pool := newTestPool(t, 3, echoExecutor())
	workers := pool.Workers()

	results, err := pool.DispatchBatch(context.Background(), makeTasks(9))
	require.NoError(t, err)

	for _, r := range results {
		idx := r.TaskID.(int) % 3
		assert.Equal(t, workers[idx].ID, r.WorkerID, "task %v on wrong worker", r.TaskID)
	}
}

func TestDispatchBatch_AtMostNInFlight(t *testing.T) {
	var current, peak int32
	executor := ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil, nil
	})
	pool := newTestPool(t, 3, executor)

	results, err := pool.DispatchBatch(context.Background(), makeTasks(12))
	require.NoError(t, err)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
}

func TestDispatchBatch_OverlappingBatchesShareTheWorkers(t *testing.T) {
	var current, peak int32
	var mu sync.Mutex
	running := map[int]bool{}
	doubleBooked := false

	factory := func(index int) ports.TaskExecutor {
		return ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
			mu.Lock()
			if running[index] {
				doubleBooked = true
			}
			running[index] = true
			mu.Unlock()

			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(3 * time.Millisecond)
			atomic.AddInt32(&current, -1)

			mu.Lock()
			running[index] = false
			mu.Unlock()
			return nil, nil
		})
	}
	pool, err := NewPool(2, factory, nil, nil, time.Hour)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	var wg sync.WaitGroup
	counts := make([]int, 3)
	for b := range counts {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			results, err := pool.DispatchBatch(context.Background(), makeTasks(4))
			assert.NoError(t, err)
			counts[b] = len(results)
		}(b)
	}
	wg.Wait()

	assert.Equal(t, []int{4, 4, 4}, counts)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.False(t, doubleBooked, "a worker ran two tasks at once")
	for _, info := range pool.Workers() {
		assert.Equal(t, domain.WorkerStatusIdle, info.Status)
	}
}

func TestDispatchBatch_EmptyBatch(t *testing.T) {
	pool := newTestPool(t, 2, echoExecutor())

	results, err := pool.DispatchBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDispatchBatch_CancelledContextStillYieldsEveryResult(t *testing.T) {
	pool := newTestPool(t, 2, echoExecutor())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := pool.DispatchBatch(ctx, makeTasks(4))
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 4, CountFailed(results))
	assert.Contains(t, results[0].Error, context.Canceled.Error())
}

func TestNewPool_Heterogeneous(t *testing.T) {
	factory := func(index int) ports.TaskExecutor {
		label := "even"
		if index%2 == 1 {
			label = "odd"
		}
		return ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
			return label, nil
		})
	}
	pool, err := NewPool(2, factory, nil, nil, time.Hour)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	results, err := pool.DispatchBatch(context.Background(), makeTasks(4))
	require.NoError(t, err)
	for _, r := range results {
		want := "even"
		if r.TaskID.(int)%2 == 1 {
			want = "odd"
		}
		assert.Equal(t, want, r.Payload)
	}
}

func TestNewPool_InvalidConfiguration(t *testing.T) {
	_, err := NewPool(0, Uniform(echoExecutor()), nil, nil, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	_, err = NewPool(2, nil, nil, nil, time.Hour)
	assert.ErrorIs(t, err, ErrNilExecutor)

	_, err = NewPool(2, Uniform(nil), nil, nil, time.Hour)
	assert.ErrorIs(t, err, ErrNilExecutor)
}

func TestShutdown_WaitsForInFlightBatch(t *testing.T) {
	release := make(chan struct{})
	executor := ports.ExecutorFunc(func(ctx context.Context, task domain.Task) (interface{}, error) {
		<-release
		return "done", nil
	})
	pool := newTestPool(t, 2, executor)

	var wg sync.WaitGroup
	wg.Add(1)
	var results []domain.Result
	go func() {
		defer wg.Done()
		results, _ = pool.DispatchBatch(context.Background(), makeTasks(2))
	}()

	require.Eventually(t, func() bool {
		return pool.Health().GetStatus().BusyWorkers == 2
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Shutdown(ctx), "shutdown should time out while batch is running")

	close(release)
	wg.Wait()
	assert.Len(t, results, 2)

	require.NoError(t, pool.Shutdown(context.Background()), "retry waits for the drain")
	for _, info := range pool.Workers() {
		assert.Equal(t, domain.WorkerStatusStopped, info.Status)
	}
}

func TestHealthMonitor_ReportsStatus(t *testing.T) {
	pool, err := NewPool(2, Uniform(echoExecutor()), nil, nil, 5*time.Millisecond)
	require.NoError(t, err)

	statuses := make(chan *HealthStatus, 10)
	pool.Health().OnStatus(func(s *HealthStatus) {
		select {
		case statuses <- s:
		default:
		}
	})
	require.NoError(t, pool.Start())

	select {
	case s := <-statuses:
		assert.Equal(t, 2, s.TotalWorkers)
		assert.Equal(t, 2, s.IdleWorkers)
		assert.True(t, s.Healthy)
	case <-time.After(time.Second):
		t.Fatal("no health status reported")
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.False(t, pool.Health().IsHealthy())
	assert.ErrorIs(t, pool.Start(), ErrPoolClosed)
}
