package executors

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// TaskFieldPositions holds the read-only residue positions of a chain
const TaskFieldPositions = "positions"

// Force field constants for a C-alpha chain
const (
	BondStiffness  = 0.5
	BondLength     = 3.8
	LJEpsilon      = 0.12
	LJSigma        = 3.82
	LJSamples      = 12
	LJCutoffSq     = 144.0
	LJMinDistSq    = 0.01
	LJMaxMagnitude = 50.0
)

var errMissingPositions = errors.New("task requires residue positions")

// Vec3 is a point or vector in space
type Vec3 [3]float64

// Add returns v + o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v * k
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

// Dot returns the dot product of v and o
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Norm returns the length of v
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// ResidueForce is the net force on one residue
type ResidueForce struct {
	ID    int  `json:"id"`
	Force Vec3 `json:"force"`
}

// ForceBatch is the payload of a chain force task
type ForceBatch struct {
	Start  int            `json:"start"`
	End    int            `json:"end"`
	Forces []ResidueForce `json:"forces"`
}

// ChainForces computes forces on a range of residues of a chain: harmonic
// bonds to the adjacent residues plus a Lennard-Jones term against
// LJSamples randomly sampled non-bonded residues.
//
// Sampling is seeded from the task seed field, or from the range start.
type ChainForces struct{}

// NewChainForces creates a chain force executor
func NewChainForces() *ChainForces {
	return &ChainForces{}
}

// Execute implements ports.TaskExecutor
func (c *ChainForces) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	positions, ok := task[TaskFieldPositions].([]Vec3)
	if !ok || len(positions) == 0 {
		return nil, errMissingPositions
	}
	start, end, err := taskRange(task)
	if err != nil {
		return nil, err
	}
	if end > len(positions) {
		return nil, errInvalidRange
	}

	seed, ok := domain.IntField(task, TaskFieldSeed)
	if !ok {
		seed = start
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(start)<<32|uint64(end)))

	batch := ForceBatch{Start: start, End: end, Forces: make([]ResidueForce, 0, end-start)}
	for i := start; i < end; i++ {
		if (i-start)%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		force := bondForce(positions, i).Add(vdwForce(positions, i, rng))
		batch.Forces = append(batch.Forces, ResidueForce{ID: i, Force: force})
	}
	return batch, nil
}

func bondForce(positions []Vec3, i int) Vec3 {
	var f Vec3
	for _, j := range [2]int{i - 1, i + 1} {
		if j < 0 || j >= len(positions) {
			continue
		}
		diff := positions[j].Sub(positions[i])
		dist := diff.Norm()
		if dist > 0 {
			f = f.Add(diff.Scale(BondStiffness * (dist - BondLength) / dist))
		}
	}
	return f
}

func vdwForce(positions []Vec3, i int, rng *rand.Rand) Vec3 {
	var f Vec3
	for s := 0; s < LJSamples; s++ {
		j := rng.IntN(len(positions))
		if j-i <= 1 && i-j <= 1 {
			continue
		}
		diff := positions[j].Sub(positions[i])
		distSq := diff.Dot(diff)
		if distSq <= LJMinDistSq || distSq >= LJCutoffSq {
			continue
		}
		dist := math.Sqrt(distSq)
		sd6 := math.Pow(LJSigma/dist, 6)
		mag := 24 * LJEpsilon * (2*sd6*sd6 - sd6) / dist
		mag = min(max(mag, -LJMaxMagnitude), LJMaxMagnitude)
		f = f.Add(diff.Scale(-mag / dist))
	}
	return f
}
