// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"net/http"

	"settlement-service/internal/gateway"
	service "settlement-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives payment gateway callbacks. The gateway speaks
// form-encoded POST and expects a plain-text ack body, never JSON.
type WebhookHandler struct {
	processor *service.Processor
}

func NewWebhookHandler(processor *service.Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleCallback processes one gateway delivery and writes the ack
func (h *WebhookHandler) HandleCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusOK, gateway.AckFailure)
		return
	}

	ack := h.processor.Handle(c.Request.Context(), c.Request.PostForm)
	c.String(http.StatusOK, ack)
}
