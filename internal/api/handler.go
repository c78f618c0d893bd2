package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"order-agent/internal/menu"
	"order-agent/internal/models"
	"order-agent/internal/store"
	"order-agent/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Agent runs conversation steps; *service.Agent implements it.
type Agent interface {
	HandleInbound(ctx context.Context, phone, text string) (string, error)
	Respond(ctx context.Context, phone, text string) error
}

// OrderManager is the staff command surface; *service.OrderService implements it.
type OrderManager interface {
	GetOrder(ctx context.Context, number string) (*models.Order, []models.OrderStatusChange, error)
	ListOrders(ctx context.Context, phone string, limit int) ([]models.Order, error)
	AdvanceStatus(ctx context.Context, number, notes string) (*models.Order, error)
	SetStatus(ctx context.Context, number string, status models.OrderStatus, notes string) (*models.Order, error)
	CancelOrder(ctx context.Context, number, reason string) (*models.Order, error)
	SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	DailySummary(ctx context.Context, day time.Time) (*models.DailySummary, error)
}

// InboundPublisher queues webhook messages instead of handling them in the request.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, event *models.InboundMessageEvent) error
}

// Deduper records WhatsApp message ids so redelivered webhooks are ignored.
type Deduper interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Options configures the optional parts of the handler.
type Options struct {
	VerifyToken string
	AppSecret   string
	// Publisher switches the webhook to queue mode when set.
	Publisher InboundPublisher
	Deduper   Deduper
	DedupeTTL time.Duration
	// PhoneRateLimit caps messages per phone per minute; 0 disables.
	PhoneRateLimit int
	// APIRateLimit caps staff API requests per client IP per minute; 0 disables.
	APIRateLimit    int
	ReadinessChecks map[string]func(context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	agent        Agent
	orderManager OrderManager
	menu         menu.Provider
	opts         Options
	phoneLimiter *keyedLimiter
	apiLimiter   *keyedLimiter
	inflight     sync.WaitGroup
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(agent Agent, orderManager OrderManager, menuProvider menu.Provider, opts Options) *Handler {
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	return &Handler{
		agent:        agent,
		orderManager: orderManager,
		menu:         menuProvider,
		opts:         opts,
		phoneLimiter: newKeyedLimiter(opts.PhoneRateLimit),
		apiLimiter:   newKeyedLimiter(opts.APIRateLimit),
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/webhook", h.verifyWebhook)
	router.POST("/webhook", h.receiveWebhook)

	v1 := router.Group("/api/v1")
	v1.Use(rateLimitMiddleware(h.apiLimiter))
	{
		v1.GET("/menu", h.getMenu)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/search", h.searchOrders)
		v1.GET("/orders/summary", h.orderSummary)
		v1.GET("/orders/:number", h.getOrder)
		v1.POST("/orders/:number/advance", h.advanceOrder)
		v1.POST("/orders/:number/status", h.setOrderStatus)
		v1.POST("/orders/:number/cancel", h.cancelOrder)
		v1.POST("/simulate", h.simulate)
	}
}

// Wait blocks until in-flight webhook messages are handled.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.opts.ReadinessChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type menuItemResponse struct {
	Number    int    `json:"number"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Display   string `json:"display_price"`
}

// getMenu lists the menu as customers see it
func (h *Handler) getMenu(c *gin.Context) {
	catalog, err := menu.Load(c.Request.Context(), h.menu)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load menu",
			"details": err.Error(),
		})
		return
	}

	items := make([]menuItemResponse, 0, catalog.Len())
	for i, e := range catalog.Entries() {
		items = append(items, menuItemResponse{
			Number:    i + 1,
			ID:        e.ID,
			Name:      e.Name,
			UnitPrice: e.UnitPrice,
			Display:   models.FormatAmount(e.UnitPrice),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// listOrders returns a customer's order history
func (h *Handler) listOrders(c *gin.Context) {
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "phone is required",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = n
	}

	orders, err := h.orderManager.ListOrders(c.Request.Context(), phone, limit)
	if err != nil {
		h.orderError(c, "Failed to list orders", err)
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

// getOrder handles get order by number
func (h *Handler) getOrder(c *gin.Context) {
	order, history, err := h.orderManager.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.orderError(c, "Failed to get order", err)
		return
	}
	if history == nil {
		history = []models.OrderStatusChange{}
	}

	c.JSON(http.StatusOK, gin.H{
		"order":          order,
		"status_message": order.Status.Message(),
		"history":        history,
	})
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func bindOptionalJSON(c *gin.Context, req *statusRequest) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// advanceOrder moves an order to its next status
func (h *Handler) advanceOrder(c *gin.Context) {
	var req statusRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := h.orderManager.AdvanceStatus(c.Request.Context(), c.Param("number"), req.Notes)
	if err != nil {
		h.orderError(c, "Failed to update order status", err)
		return
	}
	h.orderUpdated(c, order)
}

// setOrderStatus moves an order to an explicit status
func (h *Handler) setOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderManager.SetStatus(c.Request.Context(), c.Param("number"), status, req.Notes)
	if err != nil {
		h.orderError(c, "Failed to update order status", err)
		return
	}
	h.orderUpdated(c, order)
}

// cancelOrder cancels an order that has not been delivered
func (h *Handler) cancelOrder(c *gin.Context) {
	var req statusRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := h.orderManager.CancelOrder(c.Request.Context(), c.Param("number"), req.Reason)
	if err != nil {
		h.orderError(c, "Failed to cancel order", err)
		return
	}
	h.orderUpdated(c, order)
}

type simulateRequest struct {
	Phone string `json:"phone" binding:"required"`
	Text  string `json:"text"`
}

// simulate runs one conversation step and returns the reply instead of sending it
func (h *Handler) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	util.MessagesReceivedTotal.WithLabelValues("simulate").Inc()
	reply, err := h.agent.HandleInbound(c.Request.Context(), req.Phone, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to handle message",
			"details": err.Error(),
			"reply":   reply,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) orderUpdated(c *gin.Context, order *models.Order) {
	c.JSON(http.StatusOK, gin.H{
		"order":          order,
		"status_message": order.Status.Message(),
	})
}

func (h *Handler) orderError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
	case errors.Is(err, models.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
