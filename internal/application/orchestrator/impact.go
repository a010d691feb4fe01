package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/swarmcore/internal/application/latency"
	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/executors"
	"go.uber.org/zap"
)

// ImpactReport summarizes which context entries reference a changed symbol
type ImpactReport struct {
	ModifiedKey string        `json:"modified_key"`
	Target      string        `json:"target"`
	Audited     int           `json:"audited"`
	Affected    []string      `json:"affected"`
	Failed      []string      `json:"failed,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// ImpactAnalyzer audits every context entry against a change. The pool must
// run executors.ImpactAudit tasks.
type ImpactAnalyzer struct {
	pool   *workers.Pool
	store  *memory.ContextStore
	probe  *latency.Probe
	logger *zap.Logger
}

// NewImpactAnalyzer creates a new impact analyzer
func NewImpactAnalyzer(pool *workers.Pool, store *memory.ContextStore, probe *latency.Probe, logger *zap.Logger) *ImpactAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImpactAnalyzer{
		pool:   pool,
		store:  store,
		probe:  probe,
		logger: logger,
	}
}

// AnalyzeChange dispatches one audit per context entry other than modifiedKey,
// looking for references to target. An empty target audits for modifiedKey itself.
func (a *ImpactAnalyzer) AnalyzeChange(ctx context.Context, modifiedKey, target string) (*ImpactReport, error) {
	start := time.Now()
	defer a.probe.Observe("analyze_change", start)

	if modifiedKey == "" {
		return nil, fmt.Errorf("modified key is required")
	}
	if target == "" {
		target = modifiedKey
	}

	snapshot := a.store.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		if key != modifiedKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	tasks := make([]domain.Task, len(keys))
	for i, key := range keys {
		tasks[i] = domain.Task{
			domain.TaskFieldID:         key,
			domain.TaskFieldName:       "Audit_" + key,
			domain.TaskFieldComplexity: 1,
			executors.TaskFieldTarget:  target,
			executors.TaskFieldSummary: snapshot[key],
		}
	}

	a.logger.Info("dispatching impact audits",
		zap.String("modified_key", modifiedKey),
		zap.String("target", target),
		zap.Int("audits", len(tasks)))

	results, err := a.pool.DispatchBatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch impact audits: %w", err)
	}

	report := &ImpactReport{
		ModifiedKey: modifiedKey,
		Target:      target,
		Audited:     len(results),
		Affected:    []string{},
	}
	for _, r := range results {
		key := fmt.Sprintf("%v", r.TaskID)
		if r.Failed() {
			report.Failed = append(report.Failed, key)
			continue
		}
		finding, ok := r.Payload.(executors.AuditFinding)
		if !ok {
			report.Failed = append(report.Failed, key)
			continue
		}
		if finding.Affected {
			report.Affected = append(report.Affected, key)
		}
	}
	sort.Strings(report.Affected)
	sort.Strings(report.Failed)
	report.Duration = time.Since(start)

	a.logger.Info("impact analysis completed",
		zap.String("modified_key", modifiedKey),
		zap.Int("affected", len(report.Affected)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration))

	return report, nil
}
