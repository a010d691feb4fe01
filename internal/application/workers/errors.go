package workers

import (
	"errors"
	"fmt"
)

// Error types for the worker pool
var (
	// ErrPoolClosed is returned when dispatching to a pool after Shutdown
	ErrPoolClosed = errors.New("pool closed")

	// ErrInvalidPoolSize is returned when a pool is created with fewer than one worker
	ErrInvalidPoolSize = errors.New("pool size must be at least 1")

	// ErrNilExecutor is returned when the executor factory yields no executor
	ErrNilExecutor = errors.New("executor is nil")

	// ErrTaskPanicked wraps a recovered executor panic
	ErrTaskPanicked = errors.New("task panicked")
)

// TaskError represents an error that occurred while a worker executed a task
type TaskError struct {
	TaskID   interface{}
	WorkerID string
	Err      error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %v failed on worker %s: %v", e.TaskID, e.WorkerID, e.Err)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError creates a new TaskError
func NewTaskError(taskID interface{}, workerID string, err error) error {
	return &TaskError{
		TaskID:   taskID,
		WorkerID: workerID,
		Err:      err,
	}
}

// IsTaskError checks if an error is a TaskError
func IsTaskError(err error) bool {
	var taskErr *TaskError
	return errors.As(err, &taskErr)
}
