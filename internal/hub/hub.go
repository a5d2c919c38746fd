package hub

import (
	"context"
	"encoding/json"
	"sync"

	"fitmatch/backend/internal/events"
)

// Client represents a single watcher of a match.
// It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// Hub fans committed match events out to in-process watchers.
type Hub struct {
	matches map[uint]map[Client]bool
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		matches: make(map[uint]map[Client]bool),
	}
}

// Subscribe registers a new watcher for a match and returns its channel.
func (h *Hub) Subscribe(matchID uint, buffer int) Client {
	client := make(Client, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.matches[matchID]; !ok {
		h.matches[matchID] = make(map[Client]bool)
	}
	h.matches[matchID][client] = true
	return client
}

// Unsubscribe removes a watcher and closes its channel.
func (h *Hub) Unsubscribe(matchID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.matches[matchID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client)
			if len(clients) == 0 {
				delete(h.matches, matchID)
			}
		}
	}
}

// Watchers returns the number of watchers of a match.
func (h *Hub) Watchers(matchID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// Publish broadcasts e to every watcher of its match. Slow watchers whose
// buffer is full miss the event rather than blocking the publisher.
// A deletion is the last event of a match: its watchers are disconnected
// once the event is buffered.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	if err := h.broadcast(e); err != nil {
		return err
	}
	if e.Type == events.MatchDeleted {
		h.CloseMatch(e.MatchID)
	}
	return nil
}

func (h *Hub) broadcast(e events.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.matches[e.MatchID]
	if !ok {
		return nil
	}

	message, err := json.Marshal(e)
	if err != nil {
		return err
	}

	for client := range clients {
		select {
		case client <- message:
		default:
		}
	}
	return nil
}

// CloseMatch disconnects every watcher of a match, e.g. after deletion.
func (h *Hub) CloseMatch(matchID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.matches[matchID] {
		close(client)
	}
	delete(h.matches, matchID)
}

// CloseAll disconnects every watcher. Used on shutdown so that open event
// streams do not hold the server.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for matchID, clients := range h.matches {
		for client := range clients {
			close(client)
		}
		delete(h.matches, matchID)
	}
}
