// README: Bridges order transitions onto the hub: who hears about what.
package ws

import (
	"time"

	"dot/internal/modules/order"
	"dot/internal/types"
)

// Notifier satisfies the order module's event seam. All delivery is
// best-effort; a missed event never affects the order itself.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// OrderCreated announces new pending work to every connected driver and to
// the admin live view.
func (n *Notifier) OrderCreated(o *order.Order) {
	payload := orderPayload(o)
	n.hub.BroadcastToRole(types.RoleDriver, EventNewOrder, payload)
	n.hub.BroadcastToRole(types.RoleAdmin, EventNewOrder, payload)
}

// OrderUpdated tells the parties on the order, plus admins, about a status
// change.
func (n *Notifier) OrderUpdated(o *order.Order) {
	payload := orderPayload(o)
	n.hub.SendToUser(o.CustomerID, EventOrderUpdate, payload)
	if o.DriverID != nil {
		n.hub.SendToUser(*o.DriverID, EventOrderUpdate, payload)
	}
	n.hub.BroadcastToRole(types.RoleAdmin, EventOrderUpdate, payload)
}

type orderEvent struct {
	ID             types.ID     `json:"id"`
	Type           order.Type   `json:"type"`
	Status         order.Status `json:"status"`
	CustomerID     types.ID     `json:"customer_id"`
	DriverID       *types.ID    `json:"driver_id,omitempty"`
	PickupAddress  string       `json:"pickup_address,omitempty"`
	DropoffAddress string       `json:"dropoff_address,omitempty"`
	Pickup         types.Point  `json:"pickup"`
	Dropoff        types.Point  `json:"dropoff"`
	EstimatedPrice string       `json:"estimated_price"`
	FinalPrice     string       `json:"final_price,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

func orderPayload(o *order.Order) orderEvent {
	ev := orderEvent{
		ID:             o.ID,
		Type:           o.Type,
		Status:         o.Status,
		CustomerID:     o.CustomerID,
		DriverID:       o.DriverID,
		PickupAddress:  o.PickupAddress,
		DropoffAddress: o.DropoffAddress,
		Pickup:         o.Pickup,
		Dropoff:        o.Dropoff,
		EstimatedPrice: o.EstimatedPrice.String(),
		CreatedAt:      o.CreatedAt,
	}
	if o.FinalPrice != nil {
		ev.FinalPrice = o.FinalPrice.String()
	}
	return ev
}
