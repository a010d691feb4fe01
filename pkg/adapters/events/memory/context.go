package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// ContextStore keeps the latest known value per source key and publishes a
// CONTEXT_UPDATE notification on its bus after every write. Concurrent
// writers of one key are last-write-wins.
type ContextStore struct {
	*MessageBus

	metrics ports.MetricsCollector

	mu    sync.RWMutex
	table map[string]interface{}
}

// NewContextStore creates a context store on top of a new bus. A zero
// capacity selects ContextBusCapacity.
func NewContextStore(cfg *BusConfig) (*ContextStore, error) {
	busCfg := BusConfig{}
	if cfg != nil {
		busCfg = *cfg
	}
	if busCfg.Name == "" {
		busCfg.Name = "context"
	}
	if busCfg.Capacity == 0 {
		busCfg.Capacity = ContextBusCapacity
	}

	bus, err := NewMessageBus(&busCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create context bus: %w", err)
	}

	return &ContextStore{
		MessageBus: bus,
		metrics:    bus.metrics,
		table:      make(map[string]interface{}),
	}, nil
}

// Update writes key -> value and notifies subscribers. A stopped store
// rejects the update without touching the table.
func (s *ContextStore) Update(key string, value interface{}) error {
	// Stop waits for the write lock, so it cannot land between check and write
	s.MessageBus.mu.RLock()
	defer s.MessageBus.mu.RUnlock()

	if s.closed {
		return ErrBusClosed
	}

	s.mu.Lock()
	s.table[key] = value
	s.mu.Unlock()

	s.metrics.RecordContextUpdate()

	if err := s.publishLocked(domain.NewContextUpdate(key)); err != nil {
		return fmt.Errorf("failed to publish context update: %w", err)
	}

	s.logger.Debug("context updated", zap.String("key", key))
	return nil
}

// Get returns the current value for key
func (s *ContextStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.table[key]
	return v, ok
}

// Snapshot returns a copy of the whole table. Values are shared, the map is not.
func (s *ContextStore) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]interface{}, len(s.table))
	for k, v := range s.table {
		snapshot[k] = v
	}
	return snapshot
}

// Keys returns every key in sorted order
func (s *ContextStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Entries returns the number of keys in the table
func (s *ContextStore) Entries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}
