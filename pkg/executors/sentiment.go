package executors

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// Task fields read by the sentiment executor
const (
	TaskFieldSentiments = "sentiments"
	TaskFieldNeighbors  = "neighbors"
)

// Sentiment bounds and propagation weights
const (
	SentimentMin   = 0.0
	SentimentMax   = 100.0
	SelfWeight     = 0.7
	NeighborWeight = 0.3
)

var errMissingPopulation = errors.New("task requires sentiments and neighbors of equal length")

// SentimentBatch is the payload of a sentiment task: the next sentiment of
// every persona in [Start, End), in order.
type SentimentBatch struct {
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Sentiments []float64 `json:"sentiments"`
	Sum        float64   `json:"sum"`
}

// Sentiment propagates opinion through a persona network. Each persona moves
// towards the mean of the peers it listens to and loses the external
// pressure, bounded to [SentimentMin, SentimentMax].
//
// The task carries the whole population read-only: TaskFieldSentiments is
// the previous step and TaskFieldNeighbors the influence mesh. All batches of
// one step read the same previous step.
type Sentiment struct{}

// NewSentiment creates a sentiment executor
func NewSentiment() *Sentiment {
	return &Sentiment{}
}

// Execute implements ports.TaskExecutor
func (s *Sentiment) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	sentiments, ok := task[TaskFieldSentiments].([]float64)
	if !ok {
		return nil, errMissingPopulation
	}
	neighbors, ok := task[TaskFieldNeighbors].([][]int)
	if !ok || len(neighbors) != len(sentiments) {
		return nil, errMissingPopulation
	}

	start, end, err := taskRange(task)
	if err != nil {
		return nil, err
	}
	if end > len(sentiments) {
		return nil, fmt.Errorf("range end %d beyond population %d: %w", end, len(sentiments), errInvalidRange)
	}

	pressure, _ := domain.FloatField(task, TaskFieldPressure)

	batch := SentimentBatch{
		Start:      start,
		End:        end,
		Sentiments: make([]float64, 0, end-start),
	}
	for i := start; i < end; i++ {
		if (i-start)%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		peers := sentiments[i]
		if len(neighbors[i]) > 0 {
			var sum float64
			for _, n := range neighbors[i] {
				if n < 0 || n >= len(sentiments) {
					return nil, fmt.Errorf("persona %d listens to unknown peer %d: %w", i, n, errMissingPopulation)
				}
				sum += sentiments[n]
			}
			peers = sum / float64(len(neighbors[i]))
		}

		next := sentiments[i]*SelfWeight + peers*NeighborWeight - pressure
		next = min(max(next, SentimentMin), SentimentMax)

		batch.Sentiments = append(batch.Sentiments, next)
		batch.Sum += next
	}

	return batch, nil
}
