package domain

import "time"

// Message is any value carried by a bus. Ordering is FIFO within one bus.
type Message interface{}

// MessageType identifies structured notifications published by the core
type MessageType string

const (
	MessageTypeContextUpdate  MessageType = "CONTEXT_UPDATE"
	MessageTypeBatchCompleted MessageType = "BATCH_COMPLETED"
)

// Typed is implemented by messages that carry their own type
type Typed interface {
	MessageType() MessageType
}

// ContextScopeGlobal marks notifications relevant to every subscriber
const ContextScopeGlobal = "GLOBAL"

// ContextUpdate is published by the context store after every write
type ContextUpdate struct {
	Type      MessageType `json:"type"`
	Key       string      `json:"key"`
	Scope     string      `json:"scope"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewContextUpdate creates a change notification for key
func NewContextUpdate(key string) ContextUpdate {
	return ContextUpdate{
		Type:      MessageTypeContextUpdate,
		Key:       key,
		Scope:     ContextScopeGlobal,
		Timestamp: time.Now().UTC(),
	}
}

// MessageType implements Typed
func (u ContextUpdate) MessageType() MessageType {
	return u.Type
}

// BatchCompleted is published on the swarm bus after a batch returns
type BatchCompleted struct {
	Type      MessageType   `json:"type"`
	Tasks     int           `json:"tasks"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewBatchCompleted creates a batch summary notification
func NewBatchCompleted(tasks, failed int, duration time.Duration) BatchCompleted {
	return BatchCompleted{
		Type:      MessageTypeBatchCompleted,
		Tasks:     tasks,
		Failed:    failed,
		Duration:  duration,
		Timestamp: time.Now().UTC(),
	}
}

// MessageType implements Typed
func (b BatchCompleted) MessageType() MessageType {
	return b.Type
}
