// Package notify implements the websocket change-notification fan-out.
package notify

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Conn is the minimal duplex connection surface the hub tracks. The
// webserver adapts *websocket.Conn to this; tests use in-memory fakes.
type Conn interface {
	WriteText(data []byte) error
	Close() error
}

// Hub is an explicitly owned connection registry: constructed once at
// process start, closed at process stop. Broadcast is best-effort,
// at-most-once per currently open connection, with no retry and no
// persistence of missed notifications.
type Hub struct {
	name   string
	nextID atomic.Uint64

	mu    sync.RWMutex
	conns map[uint64]Conn
}

func NewHub(name string) *Hub {
	return &Hub{
		name:  name,
		conns: make(map[uint64]Conn),
	}
}

// Register tracks a connection and returns its id.
func (h *Hub) Register(c Conn) uint64 {
	id := h.nextID.Add(1)
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	zap.L().Debug("websocket client registered",
		zap.String("hub", h.name), zap.Uint64("conn_id", id))
	return id
}

// Unregister removes a connection unconditionally. Idempotent.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// Broadcast serializes the envelope once and delivers it sequentially to
// every tracked connection in id order. Connections whose send fails are
// closed and dropped from the registry; a failure on one connection never
// aborts delivery to the rest. Returns the number of successful sends.
func (h *Hub) Broadcast(env Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		zap.L().Error("broadcast marshal failed",
			zap.String("hub", h.name), zap.Error(err))
		return 0
	}
	return h.BroadcastRaw(data)
}

// BroadcastRaw delivers a pre-serialized message with Broadcast's
// semantics.
func (h *Hub) BroadcastRaw(data []byte) int {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	delivered := 0
	for _, id := range ids {
		h.mu.RLock()
		c, ok := h.conns[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if err := c.WriteText(data); err != nil {
			zap.L().Debug("dropping dead websocket client",
				zap.String("hub", h.name), zap.Uint64("conn_id", id), zap.Error(err))
			h.Unregister(id)
			_ = c.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// Count returns the number of tracked connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close tears the registry down, closing every tracked connection.
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.conns {
		_ = c.Close()
		delete(h.conns, id)
	}
	h.mu.Unlock()
}
