// Package ws pushes change notifications to open dashboards so they reload
// the listing after another operator writes.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"
)

// EventCareerChanged is sent after a successful create, update or delete.
const EventCareerChanged = "career_changed"

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type CareerChange struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	connected  atomic.Int64
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.connected.Store(0)
	for {
		h.connected.Store(int64(len(h.clients)))
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("dashboard connected", zap.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.Broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Connected is the number of open dashboard connections.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// NotifyCareerChanged queues a career_changed event. It never blocks the
// caller; if the queue is full the event is dropped and logged.
func (h *Hub) NotifyCareerChanged(action, id string) {
	msg, err := json.Marshal(Message{
		Type: EventCareerChanged,
		Data: CareerChange{Action: action, ID: id},
	})
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	select {
	case h.Broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("action", action))
	}
}
