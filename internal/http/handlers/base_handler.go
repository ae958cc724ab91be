// README: Shared handler plumbing: error mapping and the order JSON view.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dot/internal/modules/order"
	"dot/internal/modules/rating"
	"dot/internal/modules/wallet"
	"dot/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, rating.ErrInvalidStars):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, rating.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotAuthorized),
		errors.Is(err, rating.ErrNotAuthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotAvailable),
		errors.Is(err, rating.ErrAlreadyRated),
		errors.Is(err, rating.ErrNotCompleted):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, order.ErrPricingUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type moneyView struct {
	Amount   string `json:"amount"`
	Minor    int64  `json:"minor_units"`
	Currency string `json:"currency"`
}

func renderMoney(m types.Money) moneyView {
	return moneyView{Amount: m.String(), Minor: m.Amount, Currency: m.Currency}
}

type orderView struct {
	ID             types.ID     `json:"id"`
	Type           order.Type   `json:"type"`
	Status         order.Status `json:"status"`
	CustomerID     types.ID     `json:"customer_id"`
	DriverID       *types.ID    `json:"driver_id,omitempty"`
	Pickup         types.Point  `json:"pickup"`
	PickupAddress  string       `json:"pickup_address,omitempty"`
	Dropoff        types.Point  `json:"dropoff"`
	DropoffAddress string       `json:"dropoff_address,omitempty"`
	EstimatedPrice moneyView    `json:"estimated_price"`
	FinalPrice     *moneyView   `json:"final_price,omitempty"`
	Commission     moneyView    `json:"commission"`

	RecipientName   string     `json:"recipient_name,omitempty"`
	ItemDescription string     `json:"item_description,omitempty"`
	ItemPrice       *moneyView `json:"item_price,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt         *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

func renderOrder(o *order.Order) orderView {
	v := orderView{
		ID:                 o.ID,
		Type:               o.Type,
		Status:             o.Status,
		CustomerID:         o.CustomerID,
		DriverID:           o.DriverID,
		Pickup:             o.Pickup,
		PickupAddress:      o.PickupAddress,
		Dropoff:            o.Dropoff,
		DropoffAddress:     o.DropoffAddress,
		EstimatedPrice:     renderMoney(o.EstimatedPrice),
		Commission:         renderMoney(o.Commission),
		RecipientName:      o.RecipientName,
		ItemDescription:    o.ItemDescription,
		CreatedAt:          o.CreatedAt,
		AcceptedAt:         o.AcceptedAt,
		PickedUpAt:         o.PickedUpAt,
		DeliveredAt:        o.DeliveredAt,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
	}
	if o.FinalPrice != nil {
		fp := renderMoney(*o.FinalPrice)
		v.FinalPrice = &fp
	}
	if o.ItemPrice != nil {
		ip := renderMoney(*o.ItemPrice)
		v.ItemPrice = &ip
	}
	return v
}

func renderOrders(orders []*order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, renderOrder(o))
	}
	return out
}

type statusLogView struct {
	OldStatus order.Status `json:"old_status"`
	NewStatus order.Status `json:"new_status"`
	ChangedBy types.ID     `json:"changed_by"`
	Timestamp time.Time    `json:"timestamp"`
	Notes     string       `json:"notes,omitempty"`
}

func renderLogs(logs []order.StatusLog) []statusLogView {
	out := make([]statusLogView, 0, len(logs))
	for _, l := range logs {
		out = append(out, statusLogView{
			OldStatus: l.OldStatus,
			NewStatus: l.NewStatus,
			ChangedBy: l.ChangedBy,
			Timestamp: l.Timestamp,
			Notes:     l.Notes,
		})
	}
	return out
}
