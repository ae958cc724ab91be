// README: Driver rating left by a customer after a completed order.
package rating

import (
	"time"

	"dot/internal/types"
)

type Rating struct {
	ID         types.ID
	OrderID    types.ID
	DriverID   types.ID
	CustomerID types.ID
	Stars      int
	Comment    string
	CreatedAt  time.Time
}
