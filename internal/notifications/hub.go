package notifications

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/websocket/v2"

	"coffer/internal/observability"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub fans collection change events out to connected sync clients. Each
// client is registered for the collections it was a member of at connect
// time; revoked members stop receiving nudges once their socket re-dials.
type Hub struct {
	mu         sync.RWMutex
	byUser     map[uint]map[*Client]struct{}
	byCol      map[string]map[*Client]struct{}
	totalConns int
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		byUser: make(map[uint]map[*Client]struct{}),
		byCol:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection for userID, subscribed to the given
// collections. Returns the Client or an error if limits are exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn, collectionUIDs []string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.byUser[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.byUser[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := newClient(h, conn, userID, collectionUIDs)
	m[client] = struct{}{}
	for uid := range client.collections {
		cm, ok := h.byCol[uid]
		if !ok {
			cm = make(map[*Client]struct{})
			h.byCol[uid] = cm
		}
		cm[client] = struct{}{}
	}
	h.totalConns++
	observability.WebSocketConnections.Inc()

	return client, nil
}

// Unregister removes a client from every index.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.byUser[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.byUser, client.UserID)
	}
	for uid := range client.collections {
		if cm, ok := h.byCol[uid]; ok {
			delete(cm, client)
			if len(cm) == 0 {
				delete(h.byCol, uid)
			}
		}
	}
	h.totalConns--
	observability.WebSocketConnections.Dec()
}

// BroadcastCollection delivers a nudge to every client registered for the
// collection.
func (h *Hub) BroadcastCollection(collectionUID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.byCol[collectionUID] {
		client.TrySend(payload)
	}
}

// StartWiring connects the hub to the Redis pattern subscriber so nudges
// published by any server instance reach clients connected here.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(collectionUID string, payload []byte) {
		h.BroadcastCollection(collectionUID, payload)
	})
}

// Shutdown closes every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, m := range h.byUser {
		for client := range m {
			close(client.Send)
		}
	}
	h.byUser = make(map[uint]map[*Client]struct{})
	h.byCol = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	observability.WebSocketConnections.Set(0)
	return nil
}
