package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"go.uber.org/zap"
)

// DefaultClientBuffer is the number of messages queued per slow client
const DefaultClientBuffer = 64

type client struct {
	prefix string
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans bus messages out to connected clients. A client whose buffer is
// full misses messages rather than slowing the bus.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a new hub
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

// Sink adapts the hub to a bus pump
func (h *Hub) Sink() memory.Sink {
	return func(ctx context.Context, msg domain.Message) {
		h.Broadcast(msg)
	}
}

// Broadcast sends msg to every matching client. Client prefixes filter
// context updates by key; every other message reaches all clients.
func (h *Hub) Broadcast(msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	key, keyed := "", false
	if update, ok := msg.(domain.ContextUpdate); ok {
		key, keyed = update.Key, true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if keyed && c.prefix != "" && !strings.HasPrefix(key, c.prefix) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message",
				zap.String("key", key))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) register(prefix string) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	c := &client{prefix: prefix, send: make(chan []byte, h.buffer)}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}
