package websocket

import "sync"

// AccountUpdate is pushed to a user's open sockets after a buy, sell or
// deposit commits.
type AccountUpdate struct {
	Cash   string `json:"cash"`
	Symbol string `json:"symbol,omitempty"`
	Shares int64  `json:"shares,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastAccount queues an update on every open socket for the user.
// A socket whose buffer is full misses the update rather than blocking
// the trade that produced it.
func (h *Hub) BroadcastAccount(userID string, update AccountUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- update:
		default:
		}
	}
}
