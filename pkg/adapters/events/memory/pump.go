package memory

import (
	"context"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
)

// Sink receives messages drained from a bus
type Sink func(ctx context.Context, msg domain.Message)

// Pump is the single consumer of bus: it subscribes in a loop and hands every
// message to each sink in order. It returns when ctx is done or when the bus
// is stopped and drained.
func Pump(ctx context.Context, bus *MessageBus, pollTimeout time.Duration, sinks ...Sink) {
	if pollTimeout <= 0 {
		pollTimeout = DefaultSubscribeTimeout
	}

	for {
		if ctx.Err() != nil {
			return
		}

		msg, ok := bus.Subscribe(ctx, pollTimeout)
		if !ok {
			if bus.Stopped() && bus.Len() == 0 {
				return
			}
			continue
		}

		for _, sink := range sinks {
			sink(ctx, msg)
		}
	}
}
