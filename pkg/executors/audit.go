package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// Task fields read by the impact audit executor
const (
	TaskFieldTarget  = "target"
	TaskFieldSummary = "summary"
)

var errMissingTarget = errors.New("task has no target")

// AuditFinding reports whether a context entry references the audited target
type AuditFinding struct {
	Key        string   `json:"key"`
	Target     string   `json:"target"`
	Affected   bool     `json:"affected"`
	References []string `json:"references,omitempty"`
}

// ImpactAudit searches the task summary for references to the target symbol.
// The summary is the context entry of the audited key, carried in the task
// so the executor never reads the shared store.
type ImpactAudit struct{}

// NewImpactAudit creates an impact audit executor
func NewImpactAudit() *ImpactAudit {
	return &ImpactAudit{}
}

// Execute implements ports.TaskExecutor
func (a *ImpactAudit) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	target := task.String(TaskFieldTarget)
	if target == "" {
		return nil, errMissingTarget
	}

	var refs []string
	collectReferences(task[TaskFieldSummary], "$", target, &refs)
	sort.Strings(refs)

	return AuditFinding{
		Key:        fmt.Sprintf("%v", task.ID()),
		Target:     target,
		Affected:   len(refs) > 0,
		References: refs,
	}, nil
}

// collectReferences walks v and records the path of every string that
// contains target
func collectReferences(v interface{}, path, target string, refs *[]string) {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, target) {
			*refs = append(*refs, path)
		}
	case []string:
		for i, s := range val {
			collectReferences(s, fmt.Sprintf("%s[%d]", path, i), target, refs)
		}
	case []interface{}:
		for i, item := range val {
			collectReferences(item, fmt.Sprintf("%s[%d]", path, i), target, refs)
		}
	case map[string]interface{}:
		for k, item := range val {
			collectReferences(item, path+"."+k, target, refs)
		}
	case map[string]string:
		for k, item := range val {
			collectReferences(item, path+"."+k, target, refs)
		}
	}
}
