// README: Wire format for realtime events: a type tag and a JSON payload.
package ws

import (
	"encoding/json"
	"time"

	"dot/internal/modules/location"
	"dot/internal/types"
)

const (
	// client -> server
	EventDriverLocation     = "driver_location"
	EventGetDriverLocations = "get_driver_locations"

	// server -> client
	EventOrderUpdate     = "order_update"
	EventNewOrder        = "new_order"
	EventDriverLocations = "driver_locations"
	EventError           = "error"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Driver coordinates cross the wire flat, the way the admin dashboard reads
// them: the broadcast carries the driver id inline, the snapshot keys by it.
type driverLocationEvent struct {
	DriverID  types.ID  `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type driverPosition struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func driverLocationMap(active []location.DriverLocation) map[types.ID]driverPosition {
	out := make(map[types.ID]driverPosition, len(active))
	for _, l := range active {
		out[l.DriverID] = driverPosition{
			Latitude:  l.Position.Lat,
			Longitude: l.Position.Lng,
			Timestamp: l.SeenAt,
		}
	}
	return out
}

func encode(eventType string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	b, _ := json.Marshal(Envelope{Type: eventType, Data: raw})
	return b
}
