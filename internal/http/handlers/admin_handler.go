// README: Admin endpoints: wallet top-ups, dashboards, settings, dispute views.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dot/internal/http/middleware"
	"dot/internal/modules/location"
	"dot/internal/modules/order"
	"dot/internal/modules/settings"
	"dot/internal/modules/stats"
	"dot/internal/modules/wallet"
	"dot/internal/types"
)

type AdminHandler struct {
	orders    *order.Service
	wallets   *wallet.Service
	settings  *settings.Service
	stats     *stats.Service
	locations *location.Service
}

func NewAdminHandler(orders *order.Service, wallets *wallet.Service, st *settings.Service, sts *stats.Service, locations *location.Service) *AdminHandler {
	return &AdminHandler{orders: orders, wallets: wallets, settings: st, stats: sts, locations: locations}
}

type topUpReq struct {
	DriverID    types.ID `json:"driver_id" binding:"required"`
	AmountMinor int64    `json:"amount_minor" binding:"required"`
}

func (h *AdminHandler) TopUp(c *gin.Context) {
	var req topUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	amount := types.Money{Amount: req.AmountMinor, Currency: types.DefaultCurrency}
	tx, err := h.wallets.TopUp(c.Request.Context(), req.DriverID, amount, middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	balance, err := h.wallets.GetBalance(c.Request.Context(), req.DriverID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": tx.ID,
		"balance":        renderMoney(balance),
	})
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	day := time.Now().UTC()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	d, err := h.stats.DashboardFor(c.Request.Context(), day)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *AdminHandler) DriverStats(c *gin.Context) {
	ds, err := h.stats.ForDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// Orders lists recent orders for dispute resolution, optionally filtered by
// status and bounded by a created-after cutoff (default last 24h).
func (h *AdminHandler) Orders(c *gin.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := c.Query("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	orders, err := h.orders.ListSince(c.Request.Context(), since, order.Status(c.Query("status")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrders(orders))
}

func (h *AdminHandler) ListSettings(c *gin.Context) {
	list, err := h.settings.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type setSettingReq struct {
	Value       string `json:"value" binding:"required"`
	Description string `json:"description"`
}

func (h *AdminHandler) SetSetting(c *gin.Context) {
	var req setSettingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.settings.Set(c.Request.Context(), c.Param("key"), req.Value, req.Description)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) DriverLocations(c *gin.Context) {
	active, err := h.locations.Active(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *AdminHandler) NearbyDrivers(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	radius, _ := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	drivers, err := h.locations.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, drivers)
}
