// README: Rating endpoints: rate a completed order, read a driver's score.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dot/internal/http/middleware"
	"dot/internal/modules/rating"
	"dot/internal/types"
)

type RatingHandler struct {
	ratings *rating.Service
}

func NewRatingHandler(ratings *rating.Service) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type rateReq struct {
	Stars   int    `json:"stars" binding:"required"`
	Comment string `json:"comment"`
}

func (h *RatingHandler) Rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.ratings.Rate(c.Request.Context(), rating.RateCommand{
		OrderID:    types.ID(c.Param("id")),
		CustomerID: middleware.CallerUID(c),
		Stars:      req.Stars,
		Comment:    req.Comment,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        r.ID,
		"order_id":  r.OrderID,
		"driver_id": r.DriverID,
		"stars":     r.Stars,
		"comment":   r.Comment,
	})
}

func (h *RatingHandler) DriverSummary(c *gin.Context) {
	sum, err := h.ratings.SummaryForDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *RatingHandler) DriverRatings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.ratings.ListByDriver(c.Request.Context(), types.ID(c.Param("id")), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for _, r := range list {
		views = append(views, gin.H{
			"order_id":   r.OrderID,
			"stars":      r.Stars,
			"comment":    r.Comment,
			"created_at": r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}
