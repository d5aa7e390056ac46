// internal/service/refund/refund_coordinator.go
package refund

import (
	"context"
	"time"

	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository"

	"go.uber.org/zap"
)

// Coordinator reverses settled orders: voids the invoice, calls the gateway
// refund endpoint, and records the outcome. A refund is never assumed to
// have succeeded — gateway failure leaves the order paid.
type Coordinator struct {
	ds       repository.Datastore
	refunds  gateway.RefundClient
	invoices gateway.InvoiceClient
	logger   *zap.Logger
	now      func() time.Time
}

func NewCoordinator(ds repository.Datastore, refunds gateway.RefundClient, invoices gateway.InvoiceClient, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		ds:       ds,
		refunds:  refunds,
		invoices: invoices,
		logger:   logger,
		now:      time.Now,
	}
}

// Refund reverses a paid order. A nil amount refunds the full original.
func (c *Coordinator) Refund(ctx context.Context, orderID string, req *order.RefundRequest) (*order.RefundResult, error) {
	o, err := c.ds.Orders().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus != order.StatusPaid {
		return nil, xerrors.Wrap(xerrors.ErrInvalidStateTransition,
			"only paid orders can be refunded")
	}

	amount := o.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > o.Amount {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput,
			"refund amount must be positive and within the original amount")
	}

	// Void the invoice first. Failure is logged and does not block the
	// refund; the money matters more than the paperwork.
	invoiceVoided := false
	if o.InvoiceNumber.Valid && c.invoices != nil {
		if err := c.invoices.Void(ctx, o.InvoiceNumber.String, req.Reason); err != nil {
			c.logger.Error("invoice void failed",
				zap.String("order_id", o.OrderID),
				zap.String("invoice_number", o.InvoiceNumber.String),
				zap.Error(err),
			)
		} else {
			invoiceVoided = true
		}
	}

	if _, err := c.refunds.Refund(ctx, &gateway.RefundCall{
		MerchantTradeNo: o.OrderID,
		GatewayTradeNo:  o.GatewayTradeNo.String,
		Amount:          amount,
	}); err != nil {
		// Local state untouched; the order stays paid.
		c.logger.Error("gateway refund failed",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return nil, err
	}

	// Status flip and refund outcome land in one conditional update; if a
	// concurrent refund won the paid -> refunded edge, surface that.
	if err := c.ds.Orders().MarkRefunded(ctx, o.OrderID, amount, req.Reason, c.now()); err != nil {
		return nil, err
	}

	c.logger.Info("order refunded",
		zap.String("order_id", o.OrderID),
		zap.Int64("amount", amount),
		zap.Bool("invoice_voided", invoiceVoided),
	)

	return &order.RefundResult{
		OrderID:        o.OrderID,
		RefundedAmount: amount,
		InvoiceVoided:  invoiceVoided,
	}, nil
}
