// README: Customer-facing order endpoints: create, view, history, cancel, recipient link.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dot/internal/http/middleware"
	"dot/internal/modules/order"
	"dot/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createTaxiReq struct {
	Pickup         types.Point `json:"pickup" binding:"required"`
	Dropoff        types.Point `json:"dropoff" binding:"required"`
	PickupAddress  string      `json:"pickup_address"`
	DropoffAddress string      `json:"dropoff_address"`
}

type createDeliveryReq struct {
	createTaxiReq
	RecipientName   string `json:"recipient_name"`
	RecipientPhone  string `json:"recipient_phone" binding:"required"`
	ItemDescription string `json:"item_description"`
	ItemPriceMinor  *int64 `json:"item_price_minor"`
}

func (h *OrderHandler) CreateTaxi(c *gin.Context) {
	var req createTaxiReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.orders.CreateTaxi(c.Request.Context(), order.CreateTaxiCommand{
		CustomerID:     middleware.CallerUID(c),
		Pickup:         req.Pickup,
		Dropoff:        req.Dropoff,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, renderOrder(o))
}

func (h *OrderHandler) CreateDelivery(c *gin.Context) {
	var req createDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd := order.CreateDeliveryCommand{
		CreateTaxiCommand: order.CreateTaxiCommand{
			CustomerID:     middleware.CallerUID(c),
			Pickup:         req.Pickup,
			Dropoff:        req.Dropoff,
			PickupAddress:  req.PickupAddress,
			DropoffAddress: req.DropoffAddress,
		},
		RecipientName:   req.RecipientName,
		RecipientPhone:  req.RecipientPhone,
		ItemDescription: req.ItemDescription,
	}
	if req.ItemPriceMinor != nil {
		m := types.Money{Amount: *req.ItemPriceMinor, Currency: types.DefaultCurrency}
		cmd.ItemPrice = &m
	}
	o, err := h.orders.CreateDelivery(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, renderOrder(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	// parties on the order and admins only
	uid, role := middleware.CallerUID(c), middleware.CallerRole(c)
	if role != types.RoleAdmin && uid != o.CustomerID && (o.DriverID == nil || *o.DriverID != uid) {
		writeDomainError(c, order.ErrNotAuthorized)
		return
	}
	c.JSON(http.StatusOK, renderOrder(o))
}

func (h *OrderHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.orders.Get(ctx, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	uid, role := middleware.CallerUID(c), middleware.CallerRole(c)
	if role != types.RoleAdmin && uid != o.CustomerID && (o.DriverID == nil || *o.DriverID != uid) {
		writeDomainError(c, order.ErrNotAuthorized)
		return
	}
	logs, err := h.orders.GetHistory(ctx, o.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderLogs(logs))
}

func (h *OrderHandler) Mine(c *gin.Context) {
	orders, err := h.orders.ListByUser(c.Request.Context(), middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrders(orders))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	o, err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		ActorID: middleware.CallerUID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(o))
}

// Recipient link endpoints. No auth middleware: the unguessable token is the
// credential.

func (h *OrderHandler) GetByToken(c *gin.Context) {
	o, err := h.orders.GetByLocationToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	// expose only what the recipient page needs
	c.JSON(http.StatusOK, gin.H{
		"order_id":         o.ID,
		"status":           o.Status,
		"recipient_name":   o.RecipientName,
		"item_description": o.ItemDescription,
		"dropoff":          o.Dropoff,
		"dropoff_address":  o.DropoffAddress,
	})
}

type recipientLocationReq struct {
	Position types.Point `json:"position" binding:"required"`
	Address  string      `json:"address"`
}

func (h *OrderHandler) SetRecipientLocation(c *gin.Context) {
	var req recipientLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.orders.SetRecipientLocation(c.Request.Context(), c.Param("token"), req.Position, req.Address)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": o.ID, "dropoff": o.Dropoff, "dropoff_address": o.DropoffAddress})
}
