// README: Driver endpoints: browse pending work, accept, advance status, wallet.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dot/internal/http/middleware"
	"dot/internal/modules/order"
	"dot/internal/modules/wallet"
	"dot/internal/types"
)

type DriverHandler struct {
	orders  *order.Service
	wallets *wallet.Service
}

func NewDriverHandler(orders *order.Service, wallets *wallet.Service) *DriverHandler {
	return &DriverHandler{orders: orders, wallets: wallets}
}

func (h *DriverHandler) ListPending(c *gin.Context) {
	orders, err := h.orders.ListPending(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrders(orders))
}

func (h *DriverHandler) Accept(c *gin.Context) {
	o, err := h.orders.Accept(c.Request.Context(), order.AcceptCommand{
		OrderID:  types.ID(c.Param("id")),
		DriverID: middleware.CallerUID(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(o))
}

type advanceReq struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *DriverHandler) AdvanceStatus(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.orders.AdvanceStatus(c.Request.Context(), order.AdvanceCommand{
		OrderID:  types.ID(c.Param("id")),
		DriverID: middleware.CallerUID(c),
		To:       order.Status(req.Status),
		Notes:    req.Notes,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(o))
}

func (h *DriverHandler) Wallet(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.CallerUID(c)

	balance, err := h.wallets.GetBalance(ctx, uid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	eligible, err := h.wallets.CanAcceptOrders(ctx, uid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":           renderMoney(balance),
		"can_accept_orders": eligible,
	})
}

func (h *DriverHandler) WalletTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txs, err := h.wallets.GetTransactions(c.Request.Context(), middleware.CallerUID(c), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	views := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		v := gin.H{
			"id":          tx.ID,
			"type":        tx.Type,
			"amount":      renderMoney(tx.Amount),
			"description": tx.Description,
			"created_at":  tx.CreatedAt,
		}
		if tx.OrderID != nil {
			v["order_id"] = *tx.OrderID
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, views)
}
