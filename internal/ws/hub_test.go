package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, shopID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		shopID: shopID,
		send:   make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client := mockClient(hub, shopID)

	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[shopID] == nil {
		t.Fatal("shop room not created")
	}
	if !hub.rooms[shopID][client] {
		t.Fatal("client not registered in shop room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client := mockClient(hub, shopID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[shopID] != nil {
		t.Fatal("shop room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shop1 := uuid.New()
	shop2 := uuid.New()

	client1 := mockClient(hub, shop1)
	client2 := mockClient(hub, shop2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"ingredient_id":"test-123","status":"LOW_STOCK"}`)
	event := Event{
		Type:    EventLowStockAlert,
		Payload: testPayload,
	}
	hub.BroadcastToShop(shop1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventLowStockAlert {
			t.Errorf("expected type %q, got %q", EventLowStockAlert, received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different shop")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client1 := mockClient(hub, shopID)
	client2 := mockClient(hub, shopID)
	client3 := mockClient(hub, shopID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    EventStockChanged,
		Payload: json.RawMessage(`{"ingredient_id":"abc","used":150}`),
	}
	hub.BroadcastToShop(shopID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != EventStockChanged {
				t.Errorf("client%d: expected type %q, got %q", i+1, EventStockChanged, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubMultipleShopsIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shop1 := uuid.New()
	shop2 := uuid.New()
	shop3 := uuid.New()

	// Create 2 clients per shop
	clients := map[uuid.UUID][]*Client{
		shop1: {mockClient(hub, shop1), mockClient(hub, shop1)},
		shop2: {mockClient(hub, shop2), mockClient(hub, shop2)},
		shop3: {mockClient(hub, shop3), mockClient(hub, shop3)},
	}

	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    EventAvailabilityChanged,
		Payload: json.RawMessage(`{"shop_id":"` + shop2.String() + `"}`),
	}
	hub.BroadcastToShop(shop2, event)

	// Only shop2 clients should receive
	for shopID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if shopID != shop2 {
					t.Fatalf("shop %s client %d should not receive message", shopID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != EventAvailabilityChanged {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if shopID == shop2 {
					t.Fatalf("shop2 client %d should have received message", i)
				}
				// Expected for other shops
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := uuid.New()
	client1 := mockClient(hub, shopID)
	client2 := mockClient(hub, shopID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[shopID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[shopID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[shopID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[shopID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[shopID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shop1 := uuid.New()
	client1 := mockClient(hub, shop1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	// Broadcast to a shop with no subscribers
	event := Event{
		Type:    EventStockChanged,
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToShop(uuid.New(), event)

	// client1 should NOT receive anything
	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different shop")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
