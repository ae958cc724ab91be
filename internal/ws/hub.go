// README: Connection registry with per-user and per-role fan-out.
package ws

import (
	"sync"

	"dot/internal/logger"
	"dot/internal/types"
)

// Hub tracks live connections. A user may hold several connections (two
// phones, a reconnect racing a dying socket); every one of them gets the
// user's events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[types.ID]map[*Client]struct{}
	byRole  map[types.Role]map[*Client]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[types.ID]map[*Client]struct{}),
		byRole:  make(map[types.Role]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
	if h.byRole[c.Role] == nil {
		h.byRole[c.Role] = make(map[*Client]struct{})
	}
	h.byRole[c.Role][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	delete(h.byUser[c.UserID], c)
	if len(h.byUser[c.UserID]) == 0 {
		delete(h.byUser, c.UserID)
	}
	delete(h.byRole[c.Role], c)
	if len(h.byRole[c.Role]) == 0 {
		delete(h.byRole, c.Role)
	}
	c.shutdown()
}

// SendToUser delivers an event to every connection the user holds. Unknown
// users are a no-op; realtime delivery is best-effort by contract.
func (h *Hub) SendToUser(userID types.ID, eventType string, data any) {
	msg := encode(eventType, data)
	h.mu.RLock()
	targets := snapshot(h.byUser[userID])
	h.mu.RUnlock()
	h.deliver(targets, msg)
}

// BroadcastToRole delivers an event to every connection tagged with the role.
func (h *Hub) BroadcastToRole(role types.Role, eventType string, data any) {
	msg := encode(eventType, data)
	h.mu.RLock()
	targets := snapshot(h.byRole[role])
	h.mu.RUnlock()
	h.deliver(targets, msg)
}

// deliver never blocks: a client whose send buffer is full is evicted rather
// than allowed to stall the hub. Targets come from a snapshot taken before
// the registry lock was released, so each client is re-checked against its
// done signal; one that disconnected in between is skipped.
func (h *Hub) deliver(targets []*Client, msg []byte) {
	for _, c := range targets {
		if c.closed() {
			continue
		}
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			h.log.Warn("evicting slow websocket client",
				logger.String("user_id", string(c.UserID)))
			h.unregister(c)
		}
	}
}

// UserOnline reports whether the user holds at least one live connection.
func (h *Hub) UserOnline(userID types.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

func (h *Hub) connectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func snapshot(set map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
