// Package websocket broadcasts bid-refresh progress to dashboard clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types pushed to dashboard clients during a refresh run.
const (
	TypeRunStarted     = "run:started"
	TypeSourceStarted  = "source:started"
	TypeSourceFinished = "source:finished"
	TypeSourceFailed   = "source:failed"
	TypeRunComplete    = "run:complete"
	TypeRunEmpty       = "run:empty"
)

// Event is one progress message. Payload content depends on Type.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and broadcasts events to them.
// A nil *Hub is safe to use and drops all events, so the CLI run mode can
// share the pipeline service without a websocket layer.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	once       sync.Once
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		quit:       make(chan struct{}),
	}
}

// Run pumps registration and broadcast events until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client registered", slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client unregistered", slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than stall the run.
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Shutdown stops the hub and disconnects all clients.
func (h *Hub) Shutdown() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.quit) })
}

// Broadcast sends an event to every connected client. Safe on a nil hub.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	if h == nil {
		return
	}
	data, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Warn("failed to marshal event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
