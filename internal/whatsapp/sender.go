package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"order-agent/internal/util"

	"go.uber.org/zap"
)

// Sender delivers one text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

var ErrNotConfigured = errors.New("whatsapp credentials not configured")

type sendRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             TextContent `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// CloudSender posts text messages to the WhatsApp Cloud API.
type CloudSender struct {
	client  *http.Client
	baseURL string
	phoneID string
	token   string
	logger  *zap.Logger
}

func NewCloudSender(baseURL, phoneID, token string, timeout time.Duration) *CloudSender {
	return &CloudSender{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		phoneID: phoneID,
		token:   token,
		logger:  util.GetLogger(),
	}
}

func (s *CloudSender) Send(ctx context.Context, phone, text string) error {
	ctx, span := util.StartSpan(ctx, "CloudSender.Send")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OutboundLatency.Observe(time.Since(start).Seconds())
	}()

	if s.token == "" || s.phoneID == "" {
		util.OutboundMessagesTotal.WithLabelValues("not_configured").Inc()
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             TextContent{Body: text},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		util.OutboundMessagesTotal.WithLabelValues("error").Inc()
		util.RecordError(span, err)
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	raw, parsed := s.readResponse(resp)

	if resp.StatusCode >= 300 {
		util.OutboundMessagesTotal.WithLabelValues("rejected").Inc()
		detail := strings.TrimSpace(string(raw))
		if parsed.Error != nil {
			detail = fmt.Sprintf("%s (code %d)", parsed.Error.Message, parsed.Error.Code)
		}
		err := fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, detail)
		util.RecordError(span, err)
		return err
	}

	util.OutboundMessagesTotal.WithLabelValues("sent").Inc()
	fields := []zap.Field{util.Phone(phone)}
	if len(parsed.Messages) > 0 {
		fields = append(fields, zap.String("message_id", parsed.Messages[0].ID))
	}
	s.logger.Info("WhatsApp message sent", fields...)
	return nil
}

// readResponse reads at most 64KB of the API answer. A body that cannot be read or
// decoded leaves parsed empty; the status code still decides the outcome.
func (s *CloudSender) readResponse(resp *http.Response) ([]byte, sendResponse) {
	var parsed sendResponse

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		s.logger.Debug("Failed to read WhatsApp API response",
			zap.Int("status", resp.StatusCode), zap.Error(err))
		return raw, parsed
	}
	if len(raw) == 0 {
		return raw, parsed
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Debug("WhatsApp API response is not JSON",
			zap.Int("status", resp.StatusCode), zap.Error(err))
	}
	return raw, parsed
}

// LogSender writes replies to the log instead of sending them. Used when no
// credentials are configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: util.GetLogger()}
}

func (s *LogSender) Send(ctx context.Context, phone, text string) error {
	util.OutboundMessagesTotal.WithLabelValues("logged").Inc()
	s.logger.Info("Outbound message (not sent)", util.Phone(phone), zap.String("text", text))
	return nil
}
