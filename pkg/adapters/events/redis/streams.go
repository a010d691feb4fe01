package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultMaxLen caps the relay stream length
const DefaultMaxLen = 10000

// MessageTypeGeneric labels relayed messages that carry no type of their own
const MessageTypeGeneric = "MESSAGE"

// RelayedMessage is a bus message as read back from the stream
type RelayedMessage struct {
	StreamID string          `json:"stream_id"`
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// Handler processes one relayed message. A nil error acknowledges it.
type Handler func(ctx context.Context, msg RelayedMessage) error

// StreamsRelay mirrors bus messages into a capped Redis stream so that
// processes outside the swarm can observe them. It is not a queue for the
// swarm itself: delivery to in-process subscribers never depends on Redis.
type StreamsRelay struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamsRelay creates a new Redis Streams relay
func NewStreamsRelay(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) (*StreamsRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamsRelay{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}, nil
}

// Stream returns the stream key
func (r *StreamsRelay) Stream() string {
	return r.stream
}

// Relay appends msg to the stream, trimming it to the configured length
func (r *StreamsRelay) Relay(ctx context.Context, msg domain.Message) error {
	msgType := MessageTypeGeneric
	if typed, ok := msg.(domain.Typed); ok {
		msgType = string(typed.MessageType())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	id := uuid.New().String()
	args := &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Values: map[string]interface{}{
			"id":   id,
			"type": msgType,
			"data": string(data),
		},
	}

	streamID, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	r.logger.Debug("message relayed",
		zap.String("id", id),
		zap.String("type", msgType),
		zap.String("stream", r.stream),
		zap.String("stream_id", streamID))

	return nil
}

// Sink adapts the relay to a bus pump. Relay failures are logged, never
// propagated back to the bus.
func (r *StreamsRelay) Sink() memory.Sink {
	return func(ctx context.Context, msg domain.Message) {
		if err := r.Relay(ctx, msg); err != nil {
			r.logger.Warn("failed to relay message",
				zap.String("stream", r.stream),
				zap.Error(err))
		}
	}
}

// Consume reads the stream through a consumer group until ctx is done.
// The group is created at the start of the stream when missing.
func (r *StreamsRelay) Consume(ctx context.Context, group, consumer string, handler Handler) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	r.logger.Info("consuming relay stream",
		zap.String("stream", r.stream),
		zap.String("consumer_group", group),
		zap.String("consumer", consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{r.stream, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("failed to read from stream",
				zap.String("stream", r.stream),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				r.processMessage(ctx, group, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (r *StreamsRelay) processMessage(ctx context.Context, group string, message redis.XMessage, handler Handler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		r.logger.Error("invalid message format",
			zap.String("stream", r.stream),
			zap.String("message_id", message.ID))
		return
	}
	id, _ := message.Values["id"].(string)
	msgType, _ := message.Values["type"].(string)

	msg := RelayedMessage{
		StreamID: message.ID,
		ID:       id,
		Type:     msgType,
		Data:     json.RawMessage(data),
	}

	if err := handler(ctx, msg); err != nil {
		r.logger.Error("handler error",
			zap.String("stream", r.stream),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := r.client.XAck(ctx, r.stream, group, message.ID).Err(); err != nil {
		r.logger.Error("failed to acknowledge message",
			zap.String("stream", r.stream),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}
