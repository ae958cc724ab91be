// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"dot/internal/types"
)

type Type string

const (
	TypeTaxi     Type = "taxi"
	TypeDelivery Type = "delivery"
)

type Status string

const (
	StatusNone      Status = "none" // audit-log marker for the creation entry
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID            types.ID
	Type          Type
	Status        Status
	StatusVersion int

	CustomerID types.ID
	DriverID   *types.ID

	Pickup         types.Point
	PickupAddress  string
	Dropoff        types.Point
	DropoffAddress string

	EstimatedPrice types.Money
	FinalPrice     *types.Money
	// Commission is frozen at creation from the platform default; it never
	// changes for the life of the order, even if the default moves.
	Commission types.Money

	// Delivery-only fields.
	RecipientName          string
	RecipientPhone         string
	ItemDescription        string
	ItemPrice              *types.Money
	RecipientLocationToken string

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancellationReason string
	CancelledBy        *types.ID
}

// StatusLog is one append-only audit entry. Entries are written in the same
// database transaction as the transition they record and are never mutated.
type StatusLog struct {
	ID        int64
	OrderID   types.ID
	OldStatus Status // StatusNone for the creation entry
	NewStatus Status
	ChangedBy types.ID
	Timestamp time.Time
	Notes     string
}

// AllowedTransitions represents the order state flow as code. Cancellation is
// reachable from every non-terminal state; picked_up may go straight to
// delivered for short taxi trips that never report in_transit.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInTransit, StatusDelivered, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
	StatusDelivered: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions can leave the status.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// driverStatuses are the transitions a driver may request through
// AdvanceStatus; accept and cancel have their own operations.
var driverStatuses = map[Status]bool{
	StatusPickedUp:  true,
	StatusInTransit: true,
	StatusDelivered: true,
	StatusCompleted: true,
}
