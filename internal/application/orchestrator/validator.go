package orchestrator

import (
	"errors"
	"fmt"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// ErrInvalidBatch is wrapped by every batch validation failure
var ErrInvalidBatch = errors.New("invalid batch")

// Validator validates task batches before dispatch
type Validator struct {
	maxBatchSize int
}

// NewValidator creates a new batch validator. maxBatchSize <= 0 means unbounded.
func NewValidator(maxBatchSize int) *Validator {
	return &Validator{maxBatchSize: maxBatchSize}
}

// Validate validates a batch of tasks
func (v *Validator) Validate(tasks []domain.Task) error {
	if v.maxBatchSize > 0 && len(tasks) > v.maxBatchSize {
		return fmt.Errorf("%w: %d tasks exceeds limit of %d", ErrInvalidBatch, len(tasks), v.maxBatchSize)
	}

	// Ids correlate results, so they must be unique when present
	ids := make(map[string]int, len(tasks))
	for i, task := range tasks {
		if task == nil {
			return fmt.Errorf("%w: task %d is nil", ErrInvalidBatch, i)
		}

		id := task.ID()
		if id == nil {
			continue
		}
		key := fmt.Sprintf("%T:%v", id, id)
		if prev, exists := ids[key]; exists {
			return fmt.Errorf("%w: duplicate task id %v at %d and %d", ErrInvalidBatch, id, prev, i)
		}
		ids[key] = i
	}

	return nil
}
