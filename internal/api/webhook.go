package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"
	"order-agent/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// verifyWebhook answers Meta's subscription handshake
func (h *Handler) verifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.String(http.StatusOK, "ok")
		return
	}
	if mode == "subscribe" && token == h.opts.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "Verification token mismatch")
}

// receiveWebhook accepts a message delivery. Once the payload parses it is always
// acknowledged; per-message failures are logged.
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to read body",
			"details": err.Error(),
		})
		return
	}

	if h.opts.AppSecret != "" && !whatsapp.VerifySignature(h.opts.AppSecret, body, c.GetHeader(whatsapp.SignatureHeader)) {
		h.logger.Warn("Webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid signature",
		})
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	// Handling outlives the request; the reply goes out through the sender.
	ctx := context.WithoutCancel(c.Request.Context())
	for _, msg := range whatsapp.ExtractMessages(&payload) {
		h.dispatch(ctx, msg)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *Handler) dispatch(ctx context.Context, msg whatsapp.InboundMessage) {
	h.inflight.Add(1)
	defer h.inflight.Done()

	util.MessagesReceivedTotal.WithLabelValues("webhook").Inc()

	if !h.phoneLimiter.allow(msg.Phone) {
		util.MessagesRateLimitedTotal.Inc()
		h.logger.Warn("Dropping message over per-phone rate limit", util.Phone(msg.Phone))
		return
	}

	if h.opts.Deduper != nil && msg.ID != "" {
		first, err := h.opts.Deduper.ClaimIdempotencyKey(ctx, "wa:"+msg.ID, h.opts.DedupeTTL)
		if err != nil {
			h.logger.Warn("Dedupe check failed, handling message anyway", zap.Error(err))
		} else if !first {
			util.MessagesDuplicateTotal.Inc()
			h.logger.Info("Ignoring redelivered message", zap.String("message_id", msg.ID))
			return
		}
	}

	if h.opts.Publisher != nil {
		event := &models.InboundMessageEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeInboundMessage,
				Timestamp: time.Now(),
			},
			MessageID: msg.ID,
			Phone:     msg.Phone,
			Text:      msg.Text,
		}
		if err := h.opts.Publisher.PublishInbound(ctx, event); err != nil {
			h.logger.Error("Failed to queue inbound message", util.Phone(msg.Phone), zap.Error(err))
		}
		return
	}

	if err := h.agent.Respond(ctx, msg.Phone, msg.Text); err != nil {
		h.logger.Error("Failed to respond to message",
			util.Phone(msg.Phone),
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}
}
