package domain

import (
	"fmt"
	"time"
)

// Recognized task fields
const (
	TaskFieldID         = "id"
	TaskFieldName       = "name"
	TaskFieldComplexity = "complexity"
)

// Task is a unit of work submitted to the pool. It is an open field mapping;
// beyond the recognized fields each executor reads its own payload keys.
type Task map[string]interface{}

// ID returns the correlation key of the task, or nil when unset
func (t Task) ID() interface{} {
	return t[TaskFieldID]
}

// Name returns the task name, falling back to the formatted id
func (t Task) Name() string {
	if name, ok := t[TaskFieldName].(string); ok {
		return name
	}
	if id := t.ID(); id != nil {
		return fmt.Sprintf("%v", id)
	}
	return ""
}

// Complexity returns the simulated cost multiplier, 1 when unset or invalid
func (t Task) Complexity() int {
	n, ok := IntField(t, TaskFieldComplexity)
	if !ok || n < 0 {
		return 1
	}
	return n
}

// String returns the string value of a field
func (t Task) String(key string) string {
	s, _ := t[key].(string)
	return s
}

// IntField reads a numeric field as int. JSON decoding produces float64,
// in-process callers usually pass int.
func IntField(t Task, key string) (int, bool) {
	switch v := t[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// FloatField reads a numeric field as float64
func FloatField(t Task, key string) (float64, bool) {
	switch v := t[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// TaskStatus is the outcome of a single task
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Result is produced by a worker for every task it receives
type Result struct {
	WorkerID string        `json:"worker_id"`
	TaskID   interface{}   `json:"task_id"`
	Status   TaskStatus    `json:"status"`
	Payload  interface{}   `json:"payload,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the task did not complete
func (r Result) Failed() bool {
	return r.Status == TaskStatusFailed
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "IDLE"
	WorkerStatusBusy    WorkerStatus = "BUSY"
	WorkerStatusStopped WorkerStatus = "STOPPED"
)
