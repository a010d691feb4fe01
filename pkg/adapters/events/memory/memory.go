package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// Default capacities per bus flavour
const (
	DefaultCapacity         = 1024
	SwarmBusCapacity        = 5000
	ContextBusCapacity      = 10000
	DefaultPublishTimeout   = 100 * time.Millisecond
	DefaultSubscribeTimeout = 100 * time.Millisecond
)

// ErrBusClosed is returned when publishing to a stopped bus
var ErrBusClosed = errors.New("bus closed")

// OverflowPolicy decides what Publish does when the bus is full
type OverflowPolicy string

const (
	// OverflowDrop discards the message silently
	OverflowDrop OverflowPolicy = "drop"
	// OverflowWait waits up to the publish timeout, then discards with a warning
	OverflowWait OverflowPolicy = "wait"
)

// ParseOverflowPolicy converts a config string into a policy
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case OverflowDrop, OverflowWait:
		return OverflowPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown overflow policy: %s (must be drop or wait)", s)
	}
}

// BusConfig holds message bus configuration
type BusConfig struct {
	Name           string
	Capacity       int
	Overflow       OverflowPolicy
	PublishTimeout time.Duration
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// MessageBus is a bounded FIFO queue with publish/subscribe.
//
// After Stop the bus is drain-then-reject: Publish returns ErrBusClosed while
// Subscribe keeps handing out buffered messages until the queue is empty.
type MessageBus struct {
	name           string
	queue          chan domain.Message
	overflow       OverflowPolicy
	publishTimeout time.Duration
	metrics        ports.MetricsCollector
	logger         *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMessageBus creates a new bounded message bus
func NewMessageBus(cfg *BusConfig) (*MessageBus, error) {
	if cfg == nil {
		cfg = &BusConfig{}
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("invalid bus capacity: %d", capacity)
	}

	overflow := cfg.Overflow
	if overflow == "" {
		overflow = OverflowDrop
	}
	if _, err := ParseOverflowPolicy(string(overflow)); err != nil {
		return nil, err
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}

	name := cfg.Name
	if name == "" {
		name = "bus"
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MessageBus{
		name:           name,
		queue:          make(chan domain.Message, capacity),
		overflow:       overflow,
		publishTimeout: publishTimeout,
		metrics:        metrics,
		logger:         logger,
		done:           make(chan struct{}),
	}, nil
}

// NewSwarmBus creates the high-volume bus used for swarm events
func NewSwarmBus(overflow OverflowPolicy, metrics ports.MetricsCollector, logger *zap.Logger) (*MessageBus, error) {
	return NewMessageBus(&BusConfig{
		Name:     "swarm",
		Capacity: SwarmBusCapacity,
		Overflow: overflow,
		Metrics:  metrics,
		Logger:   logger,
	})
}

// Name returns the bus name used in logs and metrics
func (b *MessageBus) Name() string {
	return b.name
}

// Cap returns the fixed capacity
func (b *MessageBus) Cap() int {
	return cap(b.queue)
}

// Len returns the number of queued messages
func (b *MessageBus) Len() int {
	return len(b.queue)
}

// Policy returns the overflow policy of this instance
func (b *MessageBus) Policy() OverflowPolicy {
	return b.overflow
}

// Publish enqueues a message. A full bus drops the message according to the
// overflow policy; that is not an error. Only a stopped bus returns one.
func (b *MessageBus) Publish(msg domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.publishLocked(msg)
}

// publishLocked is Publish for callers already holding b.mu for reading
func (b *MessageBus) publishLocked(msg domain.Message) error {
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queue <- msg:
		b.published()
		return nil
	default:
	}

	if b.overflow == OverflowDrop {
		b.metrics.RecordBusDropped(b.name, "full")
		return nil
	}

	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()

	select {
	case b.queue <- msg:
		b.published()
	case <-timer.C:
		b.metrics.RecordBusDropped(b.name, "timeout")
		b.logger.Warn("bus full, message dropped",
			zap.String("bus", b.name),
			zap.Int("capacity", cap(b.queue)),
			zap.Duration("waited", b.publishTimeout))
	}
	return nil
}

func (b *MessageBus) published() {
	b.metrics.RecordBusPublished(b.name)
	b.metrics.SetQueueDepth(b.name, len(b.queue))
}

// Subscribe dequeues the oldest message, waiting up to timeout. It returns
// false when nothing arrived in time, when ctx is done, or when the bus is
// stopped and drained.
func (b *MessageBus) Subscribe(ctx context.Context, timeout time.Duration) (domain.Message, bool) {
	select {
	case msg := <-b.queue:
		b.metrics.SetQueueDepth(b.name, len(b.queue))
		return msg, true
	default:
	}

	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.queue:
		b.metrics.SetQueueDepth(b.name, len(b.queue))
		return msg, true
	case <-b.done:
		// Stopped while waiting: hand out anything left, never wait again
		select {
		case msg := <-b.queue:
			return msg, true
		default:
			return nil, false
		}
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Stop marks the bus closed. It is idempotent.
func (b *MessageBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)

	b.logger.Info("bus stopped",
		zap.String("bus", b.name),
		zap.Int("pending", len(b.queue)))
}

// Stopped reports whether Stop has been called
func (b *MessageBus) Stopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Done is closed when the bus is stopped
func (b *MessageBus) Done() <-chan struct{} {
	return b.done
}
