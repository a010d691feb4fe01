package executors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// Task fields read by the dynamics executor
const (
	TaskFieldRange    = "range"
	TaskFieldPressure = "pressure"
	TaskFieldSeed     = "seed"
)

// Agent kinds
const (
	AgentPedestrian = 0
	AgentVehicle    = 1
)

// VehicleEvery makes every n-th agent a vehicle
const VehicleEvery = 5

var errInvalidRange = errors.New("task range must be [start, end) with 0 <= start <= end")

// AgentDelta is the change computed for one agent in one step
type AgentDelta struct {
	ID          int     `json:"id"`
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	Speed       float64 `json:"speed"`
	WealthDelta float64 `json:"wealth_delta"`
	Type        int     `json:"type"`
}

// DynamicsBatch is the payload of a dynamics task
type DynamicsBatch struct {
	Start  int          `json:"start"`
	End    int          `json:"end"`
	Agents []AgentDelta `json:"agents"`
}

// Dynamics moves agents along a street grid. Vehicles travel 5-10 units along
// one axis, pedestrians wander up to 2 units in both. Wealth drifts by a
// uniform ±0.1 shifted by the task pressure.
//
// Output is deterministic for a given task: the random source is seeded from
// the task seed field, or from the range start when no seed is given.
type Dynamics struct{}

// NewDynamics creates a dynamics executor
func NewDynamics() *Dynamics {
	return &Dynamics{}
}

// Execute implements ports.TaskExecutor
func (d *Dynamics) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	start, end, err := taskRange(task)
	if err != nil {
		return nil, err
	}

	pressure, _ := domain.FloatField(task, TaskFieldPressure)
	seed, ok := domain.IntField(task, TaskFieldSeed)
	if !ok {
		seed = start
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(start)<<32|uint64(end)))

	batch := DynamicsBatch{
		Start:  start,
		End:    end,
		Agents: make([]AgentDelta, 0, end-start),
	}
	for i := start; i < end; i++ {
		if (i-start)%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delta := AgentDelta{ID: i, Type: AgentPedestrian}
		if i%VehicleEvery == 0 {
			delta.Type = AgentVehicle
			step := uniform(rng, 5, 10)
			if (i/VehicleEvery)%2 == 0 {
				delta.DX = step
			} else {
				delta.DY = step
			}
		} else {
			delta.DX = uniform(rng, -2, 2)
			delta.DY = uniform(rng, -2, 2)
		}
		delta.Speed = math.Hypot(delta.DX, delta.DY)
		delta.WealthDelta = uniform(rng, -0.1, 0.1) + pressure

		batch.Agents = append(batch.Agents, delta)
	}

	return batch, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// taskRange reads the half-open agent range of a task. In-process callers
// pass [2]int or []int, JSON callers pass a two element array.
func taskRange(task domain.Task) (int, int, error) {
	var bounds []int
	switch v := task[TaskFieldRange].(type) {
	case [2]int:
		bounds = v[:]
	case []int:
		bounds = v
	case []interface{}:
		for _, item := range v {
			n, ok := domain.IntField(domain.Task{"n": item}, "n")
			if !ok {
				return 0, 0, fmt.Errorf("invalid range bound %v: %w", item, errInvalidRange)
			}
			bounds = append(bounds, n)
		}
	default:
		return 0, 0, errInvalidRange
	}

	if len(bounds) != 2 || bounds[0] < 0 || bounds[0] > bounds[1] {
		return 0, 0, errInvalidRange
	}
	return bounds[0], bounds[1], nil
}
