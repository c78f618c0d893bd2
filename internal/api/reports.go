package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"order-agent/internal/models"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// searchOrders handles staff order search. from and to are calendar days, both inclusive.
func (h *Handler) searchOrders(c *gin.Context) {
	filter := models.OrderFilter{Query: strings.TrimSpace(c.Query("query"))}

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid status",
				"details": err.Error(),
			})
			return
		}
		filter.Status = &status
	}

	from, to := c.Query("from"), c.Query("to")
	if date := c.Query("date"); date != "" {
		from, to = date, date
	}
	var err error
	if from != "" {
		if filter.From, err = time.Parse(dateLayout, from); err != nil {
			badDate(c, "from", err)
			return
		}
	}
	if to != "" {
		if filter.To, err = time.Parse(dateLayout, to); err != nil {
			badDate(c, "to", err)
			return
		}
		filter.To = filter.To.AddDate(0, 0, 1)
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		filter.Limit = n
	}

	orders, err := h.orderManager.SearchOrders(c.Request.Context(), filter)
	if err != nil {
		h.orderError(c, "Failed to search orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// orderSummary handles the daily order report, defaulting to today (UTC)
func (h *Handler) orderSummary(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			badDate(c, "date", err)
			return
		}
		day = parsed
	}

	summary, err := h.orderManager.DailySummary(c.Request.Context(), day)
	if err != nil {
		h.orderError(c, "Failed to build order summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func badDate(c *gin.Context, field string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid " + field + ", expected YYYY-MM-DD",
		"details": err.Error(),
	})
}
