// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"

	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	"settlement-service/internal/middleware"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/pkg/response"
	service "settlement-service/internal/service/order"
	refundsvc "settlement-service/internal/service/refund"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	orderService *service.OrderService
	refunds      *refundsvc.Coordinator
}

func NewPaymentHandler(orderService *service.OrderService, refunds *refundsvc.Coordinator) *PaymentHandler {
	return &PaymentHandler{
		orderService: orderService,
		refunds:      refunds,
	}
}

type checkoutResponse struct {
	Order    *order.OrderResponse     `json:"order"`
	Checkout *gateway.CheckoutPayload `json:"checkout"`
}

// ========== User Endpoints ==========

// CreateOrder opens a pending order and returns the hosted-checkout payload
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req order.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	o, payload, err := h.orderService.CreateOrder(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to create order", err)
		return
	}

	response.Success(c, http.StatusCreated, "order created", checkoutResponse{
		Order:    toOrderResponse(o),
		Checkout: payload,
	})
}

// GetOrder retrieves one of the caller's orders by its order ID
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	o, err := h.orderService.GetOrder(c.Request.Context(), userID, c.Param("order_id"), middleware.IsAdmin(c))
	if err != nil {
		response.Error(c, http.StatusNotFound, "order not found", err)
		return
	}

	response.Success(c, http.StatusOK, "order retrieved", toOrderResponse(o))
}

// ========== Admin Endpoints ==========

type adminOrderRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	order.CreateOrderRequest
}

// CreateAdminOrder opens an order on behalf of a user, lifetime plans included
func (h *PaymentHandler) CreateAdminOrder(c *gin.Context) {
	var req adminOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	o, payload, err := h.orderService.CreateAdminOrder(c.Request.Context(), req.UserID, &req.CreateOrderRequest)
	if err != nil {
		response.Error(c, statusFor(err), "failed to create order", err)
		return
	}

	response.Success(c, http.StatusCreated, "order created", checkoutResponse{
		Order:    toOrderResponse(o),
		Checkout: payload,
	})
}

// Refund reverses a settled order, fully or partially
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req order.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.refunds.Refund(c.Request.Context(), c.Param("order_id"), &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to refund order", err)
		return
	}

	response.Success(c, http.StatusOK, "order refunded", result)
}

func toOrderResponse(o *order.Order) *order.OrderResponse {
	resp := &order.OrderResponse{
		OrderID:       o.OrderID,
		PlanType:      o.PlanType,
		Amount:        o.Amount,
		Currency:      o.Currency,
		PaymentStatus: o.PaymentStatus,
		PaymentCode:   o.PaymentCode.String,
		PaymentBank:   o.PaymentBank.String,
		InvoiceNumber: o.InvoiceNumber.String,
	}
	if o.PaidAt.Valid {
		resp.PaidAt = o.PaidAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	if o.ExpiresAt.Valid {
		resp.ExpiresAt = o.ExpiresAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case xerrors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case xerrors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, xerrors.ErrInvalidStateTransition), xerrors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	case xerrors.Is(err, xerrors.ErrUpstreamGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
