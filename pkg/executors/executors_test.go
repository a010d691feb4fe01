package executors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.TaskExecutor = (*Echo)(nil)
	_ ports.TaskExecutor = (*Translation)(nil)
	_ ports.TaskExecutor = (*ImpactAudit)(nil)
	_ ports.TaskExecutor = (*Dynamics)(nil)
	_ ports.TaskExecutor = (*Sentiment)(nil)
	_ ports.TaskExecutor = (*ChainForces)(nil)
)

type fakeLLM struct {
	mu     sync.Mutex
	calls  int
	system string
	reply  string
	err    error
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = system
	return f.reply, f.err
}

func TestEcho_ProcessesByName(t *testing.T) {
	echo := NewEcho(time.Millisecond)

	start := time.Now()
	out, err := echo.Execute(context.Background(), domain.Task{"id": 1, "name": "Task_1", "complexity": 3})
	require.NoError(t, err)
	assert.Equal(t, "Processed Task_1", out)
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestEcho_HonoursCancellation(t *testing.T) {
	echo := NewEcho(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := echo.Execute(ctx, domain.Task{"id": 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslation_StubOutput(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseTypeInference, "interface Data { value: number; }"},
		{PhaseModularization, "export const data = ..."},
		{PhaseLogicTranslation, "const optimizedFunc = () => ..."},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			tr, err := NewTranslation(tt.phase, nil, 0)
			require.NoError(t, err)

			out, err := tr.Execute(context.Background(), domain.Task{"id": "a.js", "file": "a.js"})
			require.NoError(t, err)
			assert.Equal(t, TranslationOutput{Task: tt.phase, File: "a.js", Result: tt.want}, out)
		})
	}
}

func TestTranslation_Validation(t *testing.T) {
	_, err := NewTranslation("COMPILE", nil, 0)
	assert.Error(t, err)

	tr, err := NewTranslation(PhaseTypeInference, nil, 0)
	require.NoError(t, err)
	_, err = tr.Execute(context.Background(), domain.Task{"id": 1})
	assert.ErrorIs(t, err, errMissingFile)
}

func TestTranslation_LLMBackedIsCached(t *testing.T) {
	llm := &fakeLLM{reply: "  type User = { id: number }\n"}
	tr, err := NewTranslation(PhaseTypeInference, llm, 8)
	require.NoError(t, err)

	task := domain.Task{"id": "user.js", "file": "user.js", "source": "var u = {id: 1}"}

	out, err := tr.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "type User = { id: number }", out.(TranslationOutput).Result)
	assert.False(t, out.(TranslationOutput).Cached)

	out, err = tr.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, out.(TranslationOutput).Cached)
	assert.Equal(t, 1, llm.calls)
	assert.Contains(t, llm.system, "TypeScript")
}

func TestTranslation_LLMErrorFailsTask(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	tr, err := NewTranslation(PhaseModularization, llm, 8)
	require.NoError(t, err)

	_, err = tr.Execute(context.Background(), domain.Task{"file": "a.js"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestImpactAudit_FindsNestedReferences(t *testing.T) {
	audit := NewImpactAudit()

	out, err := audit.Execute(context.Background(), domain.Task{
		"id":     "service_001",
		"target": "calculate_tax",
		"summary": map[string]interface{}{
			"functions": []interface{}{"init", "calculate_tax_v2"},
			"calls":     []string{"log", "calculate_tax"},
			"owner":     "billing",
		},
	})
	require.NoError(t, err)

	finding := out.(AuditFinding)
	assert.Equal(t, "service_001", finding.Key)
	assert.True(t, finding.Affected)
	assert.Equal(t, []string{"$.calls[1]", "$.functions[1]"}, finding.References)
}

func TestImpactAudit_Unaffected(t *testing.T) {
	audit := NewImpactAudit()

	out, err := audit.Execute(context.Background(), domain.Task{
		"id":      "service_002",
		"target":  "calculate_tax",
		"summary": map[string]interface{}{"functions": []string{"render"}, "size": 12},
	})
	require.NoError(t, err)
	assert.False(t, out.(AuditFinding).Affected)
	assert.Empty(t, out.(AuditFinding).References)

	_, err = audit.Execute(context.Background(), domain.Task{"id": "x"})
	assert.ErrorIs(t, err, errMissingTarget)
}

func TestDynamics_AgentRules(t *testing.T) {
	dyn := NewDynamics()

	out, err := dyn.Execute(context.Background(), domain.Task{"range": [2]int{0, 20}, "pressure": 0.0})
	require.NoError(t, err)

	batch := out.(DynamicsBatch)
	require.Len(t, batch.Agents, 20)
	for _, a := range batch.Agents {
		if a.ID%VehicleEvery == 0 {
			assert.Equal(t, AgentVehicle, a.Type)
			assert.True(t, a.DX == 0 || a.DY == 0, "vehicles follow one axis")
			assert.InDelta(t, 7.5, a.Speed, 2.5)
		} else {
			assert.Equal(t, AgentPedestrian, a.Type)
			assert.LessOrEqual(t, a.Speed, 2.0*1.4143)
		}
		assert.InDelta(t, 0, a.WealthDelta, 0.1)
	}
}

func TestDynamics_DeterministicAndPressure(t *testing.T) {
	dyn := NewDynamics()
	task := domain.Task{"range": []interface{}{float64(100), float64(110)}, "seed": 7}

	a, err := dyn.Execute(context.Background(), task)
	require.NoError(t, err)
	b, err := dyn.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	task["pressure"] = -1.0
	c, err := dyn.Execute(context.Background(), task)
	require.NoError(t, err)
	for _, agent := range c.(DynamicsBatch).Agents {
		assert.Less(t, agent.WealthDelta, -0.89)
	}
}

func TestDynamics_InvalidRange(t *testing.T) {
	dyn := NewDynamics()

	for _, r := range []interface{}{nil, []int{5}, []int{10, 2}, []interface{}{"a", "b"}} {
		_, err := dyn.Execute(context.Background(), domain.Task{"range": r})
		assert.ErrorIs(t, err, errInvalidRange)
	}
}

func TestSentiment_Propagation(t *testing.T) {
	task := domain.Task{
		"range":      [2]int{0, 3},
		"pressure":   5.0,
		"sentiments": []float64{100, 50, 0},
		"neighbors":  [][]int{{1}, {0, 2}, {}},
	}

	out, err := NewSentiment().Execute(context.Background(), task)
	require.NoError(t, err)

	batch := out.(SentimentBatch)
	assert.Equal(t, 0, batch.Start)
	assert.Equal(t, 3, batch.End)
	require.Len(t, batch.Sentiments, 3)
	assert.InDelta(t, 80, batch.Sentiments[0], 1e-9)
	assert.InDelta(t, 45, batch.Sentiments[1], 1e-9)
	assert.Zero(t, batch.Sentiments[2], "clamped at the lower bound")
	assert.InDelta(t, 125, batch.Sum, 1e-9)
}

func TestSentiment_UpperBoundAndSubRange(t *testing.T) {
	task := domain.Task{
		"range":      [2]int{1, 2},
		"pressure":   -50.0,
		"sentiments": []float64{10, 90, 100},
		"neighbors":  [][]int{{1}, {2}, {0}},
	}

	out, err := NewSentiment().Execute(context.Background(), task)
	require.NoError(t, err)

	batch := out.(SentimentBatch)
	require.Len(t, batch.Sentiments, 1)
	assert.Equal(t, SentimentMax, batch.Sentiments[0])
}

func TestSentiment_Validation(t *testing.T) {
	s := NewSentiment()
	ctx := context.Background()

	_, err := s.Execute(ctx, domain.Task{"range": [2]int{0, 1}})
	assert.ErrorIs(t, err, errMissingPopulation)

	_, err = s.Execute(ctx, domain.Task{
		"range":      [2]int{0, 1},
		"sentiments": []float64{1, 2},
		"neighbors":  [][]int{{1}},
	})
	assert.ErrorIs(t, err, errMissingPopulation)

	_, err = s.Execute(ctx, domain.Task{
		"range":      [2]int{0, 2},
		"sentiments": []float64{1, 2},
		"neighbors":  [][]int{{1}, {7}},
	})
	assert.ErrorIs(t, err, errMissingPopulation)

	_, err = s.Execute(ctx, domain.Task{
		"range":      [2]int{0, 5},
		"sentiments": []float64{1, 2},
		"neighbors":  [][]int{{1}, {0}},
	})
	assert.ErrorIs(t, err, errInvalidRange)
}

func TestChainForces_BondPullsTowardsIdealLength(t *testing.T) {
	task := domain.Task{
		"range":     [2]int{0, 2},
		"positions": []Vec3{{0, 0, 0}, {5, 0, 0}},
	}

	out, err := NewChainForces().Execute(context.Background(), task)
	require.NoError(t, err)

	batch := out.(ForceBatch)
	require.Len(t, batch.Forces, 2)
	// stretched by 1.2 past BondLength
	assert.InDelta(t, 0.6, batch.Forces[0].Force[0], 1e-9)
	assert.InDelta(t, -0.6, batch.Forces[1].Force[0], 1e-9)
	assert.Zero(t, batch.Forces[0].Force[1])
	assert.Zero(t, batch.Forces[1].Force[2])
}

func TestChainForces_Deterministic(t *testing.T) {
	positions := make([]Vec3, 60)
	for i := range positions {
		positions[i] = Vec3{float64(i) * 1.5, float64(i%5) * 2, float64(i%3) * 3}
	}
	task := domain.Task{"range": [2]int{10, 40}, "positions": positions, "seed": 3}

	a, err := NewChainForces().Execute(context.Background(), task)
	require.NoError(t, err)
	b, err := NewChainForces().Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	batch := a.(ForceBatch)
	assert.Len(t, batch.Forces, 30)
	assert.Equal(t, 10, batch.Forces[0].ID)
}

func TestChainForces_Validation(t *testing.T) {
	c := NewChainForces()

	_, err := c.Execute(context.Background(), domain.Task{"range": [2]int{0, 1}})
	assert.ErrorIs(t, err, errMissingPositions)

	_, err = c.Execute(context.Background(), domain.Task{"range": [2]int{0, 3}, "positions": []Vec3{{}, {}}})
	assert.ErrorIs(t, err, errInvalidRange)
}

func TestVec3_Arithmetic(t *testing.T) {
	v := Vec3{3, 4, 0}
	assert.Equal(t, 5.0, v.Norm())
	assert.Equal(t, Vec3{4, 6, 2}, v.Add(Vec3{1, 2, 2}))
	assert.Equal(t, Vec3{2, 2, -2}, v.Sub(Vec3{1, 2, 2}))
	assert.Equal(t, Vec3{6, 8, 0}, v.Scale(2))
	assert.Equal(t, 11.0, v.Dot(Vec3{1, 2, 2}))
}
