// internal/app/router.go
package app

import (
	activationHandler "settlement-service/internal/handlers/activation"
	paymentHandler "settlement-service/internal/handlers/payment"
	webhookHandler "settlement-service/internal/handlers/webhook"
	"settlement-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	PaymentHandler    *paymentHandler.PaymentHandler
	WebhookHandler    *webhookHandler.WebhookHandler
	ActivationHandler *activationHandler.ActivationHandler
	AuthMiddleware    *middleware.AuthMiddleware
	WebhookGuard      gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Gateway Callbacks ====================
	// Form-encoded POSTs from the payment gateway's servers, not browsers.
	callbacks := r.Group("/callbacks")
	callbacks.Use(h.WebhookGuard)
	{
		callbacks.POST("/payment", h.WebhookHandler.HandleCallback)
	}

	// ==================== Partner Channels ====================
	// Authenticated by per-channel request signatures, not JWTs.
	channels := api.Group("/channels")
	{
		channels.POST("/activations", h.ActivationHandler.Issue)
	}

	// ==================== Activation ====================
	// OptionalAuth: anonymous visitors are parked and redirected to login.
	r.GET("/activate", h.AuthMiddleware.OptionalAuth(), h.ActivationHandler.Redeem)

	// ==================== Orders ====================
	orders := api.Group("/orders")
	orders.Use(h.AuthMiddleware.Auth())
	{
		orders.POST("", h.PaymentHandler.CreateOrder)
		orders.GET("/:order_id", h.PaymentHandler.GetOrder)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.AdminOnly())
	{
		admin.POST("/orders", h.PaymentHandler.CreateAdminOrder)
		admin.GET("/orders/:order_id", h.PaymentHandler.GetOrder)
		admin.POST("/orders/:order_id/refund", h.PaymentHandler.Refund)
	}
}
