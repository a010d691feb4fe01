package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// DefaultEchoUnit is the simulated cost of one complexity point
const DefaultEchoUnit = 10 * time.Millisecond

// Echo simulates work by sleeping unit × complexity
type Echo struct {
	unit time.Duration
}

// NewEcho creates an echo executor. A non-positive unit selects DefaultEchoUnit.
func NewEcho(unit time.Duration) *Echo {
	if unit <= 0 {
		unit = DefaultEchoUnit
	}
	return &Echo{unit: unit}
}

// Execute implements ports.TaskExecutor
func (e *Echo) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	timer := time.NewTimer(e.unit * time.Duration(task.Complexity()))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return fmt.Sprintf("Processed %s", task.Name()), nil
}
