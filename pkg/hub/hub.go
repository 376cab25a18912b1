// Package hub is a websocket broadcast hub using the channel-based fan-out
// pattern. The arm daemon runs one hub per stream (markers, joint states);
// every solve or loop cycle publishes a JSON payload and the hub fans it out
// to however many visualizers are attached.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/strikelab/go-armctl/internal/log"
)

// Hub maintains the set of active clients and broadcasts payloads to them.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// New creates a hub for the named stream.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub until the context is canceled, then closes every
// client. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			log.Info("hub stopped", "stream", h.name)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("client connected", "stream", h.name, "id", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("client disconnected", "stream", h.name, "id", client.id, "remaining", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow consumer; drop it rather than stall the stream.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow client", "stream", h.name, "id", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast encodes v as JSON and queues it for every client. When the
// broadcast queue is full the payload is dropped; streams are lossy.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn("broadcast queue full", "stream", h.name)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
