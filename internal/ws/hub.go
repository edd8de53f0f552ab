package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
)

// Hub manages WebSocket connections and location subscriptions.
type Hub struct {
	valid      map[string]bool // locations the backend serves
	clients    map[*Client]bool
	locations  map[string]map[*Client]bool // location -> subscribers
	register   chan *Client
	unregister chan *Client
	broadcast  chan *locationMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

// locationMessage represents a frame to broadcast to one location's subscribers.
type locationMessage struct {
	Location string
	Payload  []byte
}

// NewHub creates a new Hub serving the given locations.
func NewHub(locations []string, logger *zap.Logger) *Hub {
	valid := make(map[string]bool, len(locations))
	for _, loc := range locations {
		valid[loc] = true
	}
	return &Hub{
		valid:      valid,
		clients:    make(map[*Client]bool),
		locations:  make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *locationMessage, 256),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered",
				zap.String("connID", client.connID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Remove from all subscribed locations
				for location := range client.subscriptions {
					if clients, ok := h.locations[location]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.locations, location)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				zap.String("connID", client.connID),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.locations[msg.Location]; ok {
				for client := range clients {
					select {
					case client.send <- msg.Payload:
					default:
						// Buffer full, schedule disconnect
						go func(c *Client) {
							h.unregister <- c
						}(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.locations = make(map[string]map[*Client]bool)
}

// Serves reports whether the hub serves the given location.
func (h *Hub) Serves(location string) bool {
	return h.valid[location]
}

// Subscribe adds a client to a location.
func (h *Hub) Subscribe(client *Client, location string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.locations[location] == nil {
		h.locations[location] = make(map[*Client]bool)
	}
	h.locations[location][client] = true
	client.subscriptions[location] = true

	h.logger.Debug("client subscribed",
		zap.String("connID", client.connID),
		zap.String("location", location),
	)
}

// Unsubscribe removes a client from a location.
func (h *Hub) Unsubscribe(client *Client, location string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.locations[location]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.locations, location)
		}
	}
	delete(client.subscriptions, location)

	h.logger.Debug("client unsubscribed",
		zap.String("connID", client.connID),
		zap.String("location", location),
	)
}

// ActiveLocations returns all locations with at least one subscriber.
func (h *Hub) ActiveLocations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var locations []string
	for location, clients := range h.locations {
		if len(clients) > 0 {
			locations = append(locations, location)
		}
	}
	return locations
}

// BroadcastUpdate sends a snapshot to all subscribers of its location.
func (h *Hub) BroadcastUpdate(snap *aq.Snapshot) {
	frame, err := buildUpdateMessage(snap)
	if err != nil {
		h.logger.Warn("failed to encode update",
			zap.String("location", snap.Location),
			zap.Error(err),
		)
		return
	}
	h.broadcast <- &locationMessage{Location: snap.Location, Payload: frame}
}
