package stream

import (
	"encoding/json"
	"sync"

	"github.com/forecastdao/tiergate/internal/pkg/logger"
	"github.com/google/uuid"
)

// Event is one ledger state change pushed to subscribers.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // membership.purchased, treasury.withdrawal, ...
	Account string `json:"account,omitempty"`
	Role    string `json:"role,omitempty"`
	Asset   string `json:"asset,omitempty"`
	Amount  string `json:"amount,omitempty"`
	At      int64  `json:"at"`
}

// Hub fans ledger events out to connected websocket clients. Slow clients
// are dropped rather than allowed to backpressure the ledger.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("event stream client registered", "total", h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Publish enqueues an event without blocking the caller; when the buffer is
// full the event is dropped with a warning.
func (h *Hub) Publish(eventType string, fields Event) {
	fields.ID = uuid.New().String()
	fields.Type = eventType
	select {
	case h.broadcast <- fields:
	default:
		logger.Warn("event stream buffer full, dropping event", "type", eventType)
	}
}

func (h *Hub) broadcastEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Client is not keeping up; its read/write pumps will
			// observe the closed channel and tear the socket down.
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
