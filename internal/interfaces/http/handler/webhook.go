package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/webhook"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
)

// SignatureHeader carries the sender's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives inbound CRM webhook deliveries.
type WebhookHandler struct {
	BaseHandler
	dispatcher *webhook.Dispatcher
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(dispatcher *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// RegisterRoutes registers the webhook receiver route.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/crm", h.Receive)
}

// Receive handles POST /webhooks/crm. The body is read raw because the
// signature covers the exact bytes on the wire. Processing failures are
// still acked with 200 so the sender does not redeliver endlessly; only
// a signature failure is rejected.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "failed to read request body")
		return
	}

	ack, err := h.dispatcher.Handle(c.Request.Context(), rawBody, c.GetHeader(SignatureHeader))
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("Webhook delivery rejected", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}
