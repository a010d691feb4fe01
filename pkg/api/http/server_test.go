package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/swarmcore/internal/application/orchestrator"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	metrics "github.com/aescanero/swarmcore/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/executors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *Server
	pool   *workers.Pool
	store  *memory.ContextStore
	events *memory.MessageBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	collector := metrics.NewCollector()
	store, err := memory.NewContextStore(&memory.BusConfig{Metrics: collector})
	require.NoError(t, err)
	t.Cleanup(store.Stop)

	events, err := memory.NewSwarmBus(memory.OverflowDrop, collector, nil)
	require.NoError(t, err)
	t.Cleanup(events.Stop)

	pool, err := workers.NewPool(4, workers.Uniform(executors.NewEcho(time.Millisecond)), collector, nil, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	auditPool, err := workers.NewPool(2, workers.Uniform(executors.NewImpactAudit()), collector, nil, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditPool.Shutdown(context.Background()) })

	transformer, err := orchestrator.NewTransformer(&orchestrator.TransformerConfig{SwarmSize: 4, Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transformer.Shutdown(context.Background()) })

	server := NewServer(&Config{
		Pool:         pool,
		Store:        store,
		Events:       events,
		Analyzer:     orchestrator.NewImpactAnalyzer(auditPool, store, nil, nil),
		Transformer:  transformer,
		Validator:    orchestrator.NewValidator(100),
		Gatherer:     collector.Registry(),
		BatchTimeout: 5 * time.Second,
	})

	return &testEnv{server: server, pool: pool, store: store, events: events}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	require.NoError(t, env.pool.Shutdown(context.Background()))
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDispatchBatch(t *testing.T) {
	env := newTestEnv(t)

	tasks := make([]domain.Task, 10)
	for i := range tasks {
		tasks[i] = domain.Task{"id": i, "name": "Task", "complexity": 1}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/batches", BatchRequest{Tasks: tasks})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Total)
	assert.Zero(t, resp.Failed)

	seen := map[float64]bool{}
	for _, r := range resp.Results {
		seen[r.TaskID.(float64)] = true
		assert.Equal(t, "Processed Task", r.Payload)
	}
	assert.Len(t, seen, 10)

	msg, ok := env.events.Subscribe(context.Background(), 50*time.Millisecond)
	require.True(t, ok)
	summary := msg.(domain.BatchCompleted)
	assert.Equal(t, domain.MessageTypeBatchCompleted, summary.Type)
	assert.Equal(t, 10, summary.Tasks)

	rec = env.do(t, http.MethodGet, "/api/v1/workers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"IDLE"`)
}

func TestDispatchBatch_Rejections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"tasks": []interface{}{map[string]interface{}{"id": 1}, map[string]interface{}{"id": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_BATCH")

	rec = env.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, env.pool.Shutdown(context.Background()))
	rec = env.do(t, http.MethodPost, "/api/v1/batches", BatchRequest{Tasks: []domain.Task{{"id": 1}}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "POOL_CLOSED")
}

func TestContextEntries(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/context/entry?key=main.py", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/context/entry?key=main.py",
		map[string]interface{}{"functions": []string{"run"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/context/entry?key=main.py", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"main.py","value":{"functions":["run"]}}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	msg, ok := env.store.Subscribe(context.Background(), 50*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "main.py", msg.(domain.ContextUpdate).Key)

	rec = env.do(t, http.MethodPut, "/api/v1/context/entry", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.store.Stop()
	rec = env.do(t, http.MethodPut, "/api/v1/context/entry?key=late", "x")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeImpact(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Update("billing.py", map[string]interface{}{"calls": []string{"calculate_tax"}}))
	require.NoError(t, env.store.Update("ui.py", map[string]interface{}{"calls": []string{"render"}}))

	rec := env.do(t, http.MethodPost, "/api/v1/impact", ImpactRequest{ModifiedKey: "tax.py", Target: "calculate_tax"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report orchestrator.ImpactReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Audited)
	assert.Equal(t, []string{"billing.py"}, report.Affected)

	rec = env.do(t, http.MethodPost, "/api/v1/impact", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransform(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/transform", TransformRequest{Files: []string{"a.js", "b.js"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report orchestrator.TransformReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, []string{"a.js", "b.js"}, report.Transformed)

	_, ok := env.store.Get(orchestrator.TransformKeyPrefix + "a.js")
	assert.True(t, ok)

	rec = env.do(t, http.MethodPost, "/api/v1/transform", TransformRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/batches", BatchRequest{Tasks: []domain.Task{{"id": 1}}})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "swarm_batches_dispatched_total 1"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/batches", nil)
	req.Header.Set(RequestIDHeader, "abc")
	res := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc", res.Header().Get(RequestIDHeader))
}
