// README: Driver location model: last reported position plus freshness.
package location

import (
	"time"

	"dot/internal/types"
)

type DriverLocation struct {
	DriverID types.ID    `json:"driver_id"`
	Position types.Point `json:"position"`
	SeenAt   time.Time   `json:"seen_at"`
	// DistanceKm is populated only by proximity queries.
	DistanceKm float64 `json:"distance_km,omitempty"`
}
