// README: Websocket endpoint: upgrade, register with the hub, route inbound events.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dot/internal/logger"
	"dot/internal/modules/location"
	"dot/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	hub       *Hub
	locations *location.Service
	log       logger.Logger
}

func NewHandler(hub *Hub, locations *location.Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{hub: hub, locations: locations, log: log}
}

// Serve upgrades the request and runs the connection until either side ends
// it. The caller has already been authenticated.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, userID types.ID, role types.Role) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}

	c := newClient(userID, role, conn)
	h.hub.register(c)
	h.log.Info("websocket connected",
		logger.String("user_id", string(userID)),
		logger.String("role", string(role)))

	go c.writePump()
	c.readPump(h.handle)

	h.hub.unregister(c)
	if role == types.RoleDriver && !h.hub.UserOnline(userID) {
		if err := h.locations.Remove(context.Background(), userID); err != nil {
			h.log.Warn("remove driver location", logger.Err(err))
		}
	}
	h.log.Info("websocket disconnected", logger.String("user_id", string(userID)))
}

func (h *Handler) handle(c *Client, env Envelope) {
	switch env.Type {
	case EventDriverLocation:
		h.handleDriverLocation(c, env.Data)
	case EventGetDriverLocations:
		h.handleGetDriverLocations(c)
	default:
		h.reply(c, EventError, map[string]string{"message": "unknown event type"})
	}
}

func (h *Handler) handleDriverLocation(c *Client, data json.RawMessage) {
	if c.Role != types.RoleDriver {
		h.reply(c, EventError, map[string]string{"message": "drivers only"})
		return
	}
	var p types.Point
	if err := json.Unmarshal(data, &p); err != nil {
		h.reply(c, EventError, map[string]string{"message": "bad location payload"})
		return
	}
	if err := h.locations.Update(context.Background(), c.UserID, p); err != nil {
		h.log.Warn("driver location update",
			logger.String("driver_id", string(c.UserID)),
			logger.Err(err))
		return
	}
	h.hub.BroadcastToRole(types.RoleAdmin, EventDriverLocation, driverLocationEvent{
		DriverID:  c.UserID,
		Latitude:  p.Lat,
		Longitude: p.Lng,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleGetDriverLocations(c *Client) {
	if c.Role != types.RoleAdmin {
		h.reply(c, EventError, map[string]string{"message": "admins only"})
		return
	}
	active, err := h.locations.Active(context.Background())
	if err != nil {
		h.log.Warn("list driver locations", logger.Err(err))
		return
	}
	h.reply(c, EventDriverLocations, driverLocationMap(active))
}

func (h *Handler) reply(c *Client, eventType string, data any) {
	select {
	case c.send <- encode(eventType, data):
	case <-c.done:
	default:
	}
}
