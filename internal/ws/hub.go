package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to inventory subscribers.
const (
	EventStockChanged        = "stock_changed"
	EventLowStockAlert       = "low_stock_alert"
	EventAvailabilityChanged = "availability_changed"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// shopEvent is an internal struct for routing events to specific shops
type shopEvent struct {
	ShopID uuid.UUID
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The consumption engine and restock path publish stock and availability
// changes here after their transactions commit; the core itself stays
// synchronous and pull-based.
type Hub struct {
	// Registered clients by shop ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *shopEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.shopID] == nil {
				h.rooms[client.shopID] = make(map[*Client]bool)
			}
			h.rooms[client.shopID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.shopID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.shopID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.ShopID]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this shop's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.ShopID], client)
					if len(h.rooms[event.ShopID]) == 0 {
						delete(h.rooms, event.ShopID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToShop sends an event to all clients subscribed to a specific shop
// This is the public API for services and handlers to broadcast events
func (h *Hub) BroadcastToShop(shopID uuid.UUID, event Event) {
	h.broadcast <- &shopEvent{
		ShopID: shopID,
		Event:  event,
	}
}
