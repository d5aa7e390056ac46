// internal/service/webhook/processor.go
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"settlement-service/internal/domain/license"
	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository"

	"go.uber.org/zap"
)

// Processor applies inbound gateway callbacks to order and license state.
// Callbacks are at-least-once, possibly duplicated and out of order; every
// branch here is safe to replay.
type Processor struct {
	ds       repository.Datastore
	codec    *gateway.Codec
	invoices gateway.InvoiceClient
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor builds a processor. invoices may be nil when e-invoicing is
// not configured.
func NewProcessor(ds repository.Datastore, codec *gateway.Codec, invoices gateway.InvoiceClient, logger *zap.Logger) *Processor {
	return &Processor{
		ds:       ds,
		codec:    codec,
		invoices: invoices,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one callback delivery and returns the plain-text ack body
// for the gateway. "1|OK" stops redelivery; "0|FAIL" requests a retry, so it
// is reserved for protocol-level problems — business failures (card
// declined) still ack success after recording the failed state.
func (p *Processor) Handle(ctx context.Context, values url.Values) string {
	cb := gateway.ParseCallback(values)

	ok, err := p.codec.Verify(cb.Raw)
	if err != nil {
		p.logger.Error("callback verification unavailable", zap.Error(err))
		return gateway.AckFailure
	}
	if !ok {
		// Zero state change on a bad MAC; keep the payload for audit.
		p.logger.Warn("callback failed signature verification",
			zap.String("merchant_trade_no", cb.MerchantTradeNo),
			zap.String("trade_no", cb.TradeNo),
		)
		return gateway.AckFailure
	}

	if cb.MerchantTradeNo == "" {
		p.logger.Warn("callback missing merchant trade no")
		return gateway.AckFailure
	}

	o, err := p.ds.Orders().FindByOrderID(ctx, cb.MerchantTradeNo)
	if err != nil {
		p.logger.Warn("callback for unknown order",
			zap.String("merchant_trade_no", cb.MerchantTradeNo), zap.Error(err))
		return gateway.AckFailure
	}

	raw := cb.Encode().Encode()

	// Duplicate delivery: the same trade already settled this order once.
	if o.PaymentStatus == order.StatusPaid && o.GatewayTradeNo.Valid && o.GatewayTradeNo.String == cb.TradeNo {
		p.logger.Info("duplicate callback absorbed",
			zap.String("order_id", o.OrderID), zap.String("trade_no", cb.TradeNo))
		return gateway.AckSuccess
	}

	switch {
	case cb.IsCodeIssuance():
		return p.handleCodeIssuance(ctx, o, cb, raw)
	case cb.IsSuccess():
		return p.handleSuccess(ctx, o, cb, raw)
	default:
		return p.handleFailure(ctx, o, cb, raw)
	}
}

// handleCodeIssuance records the first leg of an offline (ATM / CVS)
// payment. The order stays pending until the paying callback arrives.
func (p *Processor) handleCodeIssuance(ctx context.Context, o *order.Order, cb *gateway.Callback, raw string) string {
	code := cb.VAccount
	if code == "" {
		code = cb.PaymentNo
	}

	iss := order.CodeIssuance{
		GatewayTradeNo: cb.TradeNo,
		PaymentMethod:  cb.PaymentType,
		Code:           code,
		CodeExpiresAt:  parseGatewayTime(cb.ExpireDate, p.now()),
		Bank:           cb.BankCode,
		RawCallback:    raw,
	}

	if err := p.ds.Orders().SaveCodeIssuance(ctx, o.OrderID, iss); err != nil {
		if errors.Is(err, xerrors.ErrInvalidStateTransition) {
			// Already settled or failed; nothing left to record.
			return gateway.AckSuccess
		}
		p.logger.Error("failed to record code issuance",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return gateway.AckFailure
	}

	p.logger.Info("payment code issued",
		zap.String("order_id", o.OrderID),
		zap.String("payment_type", cb.PaymentType),
	)
	return gateway.AckSuccess
}

// handleFailure records a business-level payment failure. The gateway still
// gets a success ack: only protocol errors should trigger redelivery.
func (p *Processor) handleFailure(ctx context.Context, o *order.Order, cb *gateway.Callback, raw string) string {
	err := p.ds.Orders().MarkFailed(ctx, o.OrderID, cb.TradeNo, raw)
	if err != nil && !errors.Is(err, xerrors.ErrInvalidStateTransition) {
		p.logger.Error("failed to mark order failed",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return gateway.AckFailure
	}

	p.logger.Info("payment failed",
		zap.String("order_id", o.OrderID),
		zap.String("rtn_code", cb.RtnCode),
		zap.String("rtn_msg", cb.RtnMsg),
	)
	return gateway.AckSuccess
}

// handleSuccess settles the order and upserts the user's license in one
// transaction, then triggers invoice issuance outside of it.
func (p *Processor) handleSuccess(ctx context.Context, o *order.Order, cb *gateway.Callback, raw string) string {
	if cb.TradeAmt != o.Amount {
		// A valid MAC with the wrong amount means the gateway settled a
		// different figure than we asked for. Never mark paid.
		p.logger.Error("callback amount mismatch",
			zap.String("order_id", o.OrderID),
			zap.Int64("expected", o.Amount),
			zap.Int64("received", cb.TradeAmt),
		)
		return gateway.AckFailure
	}

	paidAt := parseGatewayTime(cb.PaymentDate, p.now())

	expiresAt, err := order.ExpiryForPlan(o.PlanType, paidAt)
	if err != nil {
		// Unknown tier is a configuration fault; never default to a paid
		// tier. The gateway will redeliver once the catalog is fixed.
		p.logger.Error("cannot compute entitlement expiry",
			zap.String("order_id", o.OrderID),
			zap.String("plan_type", string(o.PlanType)),
			zap.Error(err),
		)
		return gateway.AckFailure
	}

	err = p.ds.WithinTx(ctx, func(tx repository.Datastore) error {
		if err := tx.Orders().MarkPaid(ctx, o.OrderID, order.PaidUpdate{
			GatewayTradeNo: cb.TradeNo,
			PaymentMethod:  cb.PaymentType,
			PaidAt:         paidAt,
			ExpiresAt:      expiresAt,
			RawCallback:    raw,
		}); err != nil {
			if errors.Is(err, xerrors.ErrInvalidStateTransition) {
				return xerrors.ErrDuplicateDelivery
			}
			return err
		}

		return tx.Licenses().Upsert(ctx, &license.License{
			UserID:    o.UserID,
			Tier:      string(o.PlanType),
			ExpiresAt: expiresAt,
			Status:    license.StatusActive,
			Source:    o.Channel,
		})
	})

	if errors.Is(err, xerrors.ErrDuplicateDelivery) {
		// Another delivery won the pending -> paid edge; absorb this one.
		p.logger.Info("duplicate settlement absorbed", zap.String("order_id", o.OrderID))
		return gateway.AckSuccess
	}
	if err != nil {
		p.logger.Error("failed to settle order",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return gateway.AckFailure
	}

	p.logger.Info("order settled",
		zap.String("order_id", o.OrderID),
		zap.String("trade_no", cb.TradeNo),
		zap.String("plan_type", string(o.PlanType)),
	)

	p.issueInvoice(ctx, o)

	return gateway.AckSuccess
}

// issueInvoice runs after the settlement transaction committed; a failure
// here is logged, never unwound into payment state.
func (p *Processor) issueInvoice(ctx context.Context, o *order.Order) {
	if p.invoices == nil {
		return
	}

	invoiceNumber, err := p.invoices.Issue(ctx, &gateway.IssueInvoiceCall{
		RelateNumber: o.OrderID,
		BuyerName:    o.BuyerName,
		BuyerEmail:   o.BuyerEmail,
		Amount:       o.Amount,
		ItemName:     fmt.Sprintf("%s plan", o.PlanType),
	})
	if err != nil {
		p.logger.Error("invoice issuance failed",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return
	}

	if err := p.ds.Orders().SetInvoiceNumber(ctx, o.OrderID, invoiceNumber); err != nil {
		p.logger.Error("failed to record invoice number",
			zap.String("order_id", o.OrderID),
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err),
		)
	}
}

// parseGatewayTime decodes the gateway's timestamp format, falling back to
// the local clock when the field is absent or malformed.
func parseGatewayTime(v string, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	t, err := time.ParseInLocation("2006/01/02 15:04:05", v, time.Local)
	if err != nil {
		return fallback
	}
	return t
}
