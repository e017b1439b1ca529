package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/villagestay/whatsapp-bot/internal/conversation"
	"github.com/villagestay/whatsapp-bot/internal/messaging"
	"github.com/villagestay/whatsapp-bot/internal/observability/metrics"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

var webhookTracer = otel.Tracer("villagestay.internal.http.handlers.webhook")

type messageProcessor interface {
	ProcessMessage(ctx context.Context, rawIdentity, text string) string
}

// WebhookHandler handles the inbound WhatsApp webhook and the operational
// helper endpoints around it.
type WebhookHandler struct {
	processor     messageProcessor
	messenger     conversation.ReplyMessenger
	webhookSecret string
	fromNumber    string
	metrics       *metrics.BotMetrics
	logger        *logging.Logger
}

// NewWebhookHandler creates the webhook handler. botMetrics may be nil.
func NewWebhookHandler(processor messageProcessor, messenger conversation.ReplyMessenger, webhookSecret, fromNumber string, botMetrics *metrics.BotMetrics, logger *logging.Logger) *WebhookHandler {
	if processor == nil {
		panic("handlers: message processor cannot be nil")
	}
	if messenger == nil {
		panic("handlers: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		processor:     processor,
		messenger:     messenger,
		webhookSecret: webhookSecret,
		fromNumber:    fromNumber,
		metrics:       botMetrics,
		logger:        logger,
	}
}

// HandleInbound handles POST /webhook requests from Twilio.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "webhook.inbound")
	defer span.End()

	if h.webhookSecret != "" {
		if !messaging.ValidateSignature(r, h.webhookSecret, buildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound("rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	webhook, err := messaging.ParseWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse webhook", "error", err)
		h.metrics.ObserveInbound("rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if webhook.From == "" || webhook.Body == "" {
		h.logger.Warn("missing From or Body in webhook")
		h.metrics.ObserveInbound("rejected")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("villagestay.message_sid", webhook.MessageSid),
		attribute.String("villagestay.from", webhook.From),
	)

	h.logger.Info("webhook received", "from", webhook.From, "message_sid", webhook.MessageSid)
	h.metrics.ObserveInbound("accepted")

	reply := h.processor.ProcessMessage(ctx, webhook.From, webhook.Body)
	if reply != "" {
		// Delivery is fire-and-forget: the transition is already committed
		// and a send failure must not affect it.
		if err := h.messenger.SendReply(ctx, webhook.From, reply); err != nil {
			h.logger.Error("failed to send reply", "to", webhook.From, "error", err)
			h.metrics.ObserveOutbound("failed")
		} else {
			h.metrics.ObserveOutbound("sent")
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleVerify handles GET /webhook verification pings.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook verified"))
}

// HealthCheck handles GET / requests.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "WhatsApp Webhook Service Running",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"phone_number": h.fromNumber,
	})
}

type sendMessageRequest struct {
	ToNumber string `json:"to_number"`
	Message  string `json:"message"`
}

// SendTestMessage handles POST /send-message: a synchronous test send whose
// delivery outcome is surfaced in the response payload only.
func (h *WebhookHandler) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	err := h.messenger.SendReply(r.Context(), req.ToNumber, req.Message)
	if err != nil {
		h.logger.Error("test send failed", "to", req.ToNumber, "error", err)
		h.metrics.ObserveOutbound("failed")
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Failed to send"})
		return
	}

	h.metrics.ObserveOutbound("sent")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Message sent"})
}

func buildAbsoluteURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
