// Package streaming provides real-time WebSocket fanout of session and
// betting events. The presentation layer observes the core through it.
package streaming

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// EventType classifies a streaming event.
type EventType string

const (
	EventTypeSession     EventType = "session"     // session state transition
	EventTypeBetPlaced   EventType = "bet_placed"  // wager accepted by backend
	EventTypeBalance     EventType = "balance"     // balance snapshot changed
	EventTypeLeaderboard EventType = "leaderboard" // leaderboard refreshed
	EventTypeStatus      EventType = "status"      // daemon status
	EventTypeError       EventType = "error"
	EventTypeHeartbeat   EventType = "heartbeat"
)

var allEventTypes = []EventType{
	EventTypeSession,
	EventTypeBetPlaced,
	EventTypeBalance,
	EventTypeLeaderboard,
	EventTypeStatus,
	EventTypeError,
	EventTypeHeartbeat,
}

// Event is a streaming event sent to clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub manages WebSocket connections and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new streaming hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client %s connected (%d total)", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Client %s disconnected (%d remaining)", client.id, h.ClientCount())

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.Broadcast(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now(),
				Data:      map[string]interface{}{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] Failed to marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.isSubscribed(event.Type) {
			continue
		}

		select {
		case client.send <- data:
		default:
			// Client buffer full, close connection
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast sends an event to all subscribed clients.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[WS] Broadcast channel full, dropping event")
	}
}

// BroadcastSession broadcasts a session state transition.
func (h *Hub) BroadcastSession(from, to string, username string) {
	h.Broadcast(Event{
		Type:      EventTypeSession,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"from":     from,
			"to":       to,
			"username": username,
		},
	})
}

// BroadcastBetPlaced broadcasts an accepted wager.
func (h *Hub) BroadcastBetPlaced(bet interface{}) {
	h.Broadcast(Event{
		Type:      EventTypeBetPlaced,
		Timestamp: time.Now(),
		Data:      bet,
	})
}

// BroadcastBalance broadcasts a balance snapshot.
func (h *Hub) BroadcastBalance(userID, balance string) {
	h.Broadcast(Event{
		Type:      EventTypeBalance,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"user_id": userID,
			"balance": balance,
		},
	})
}

// BroadcastLeaderboard broadcasts a ranked leaderboard.
func (h *Hub) BroadcastLeaderboard(users interface{}) {
	h.Broadcast(Event{
		Type:      EventTypeLeaderboard,
		Timestamp: time.Now(),
		Data:      users,
	})
}

// BroadcastStatus broadcasts a daemon status snapshot.
func (h *Hub) BroadcastStatus(status interface{}) {
	h.Broadcast(Event{
		Type:      EventTypeStatus,
		Timestamp: time.Now(),
		Data:      status,
	})
}

// BroadcastError broadcasts an error event.
func (h *Hub) BroadcastError(err error, context string) {
	h.Broadcast(Event{
		Type:      EventTypeError,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"error":   err.Error(),
			"context": context,
		},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
