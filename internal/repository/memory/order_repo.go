// internal/repository/memory/order_repo.go
package memory

import (
	"context"
	"database/sql"
	"time"

	"settlement-service/internal/domain/order"
	xerrors "settlement-service/internal/pkg/errors"
)

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	unlock := r.s.lock()
	defer unlock()

	if _, exists := r.s.orders[o.OrderID]; exists {
		return xerrors.ErrConflict
	}

	now := time.Now()
	o.ID = r.s.nextID()
	o.CreatedAt = now
	o.UpdatedAt = now

	c := *o
	r.s.orders[o.OrderID] = &c
	return nil
}

func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}

	c := *o
	return &c, nil
}

func (r *OrderRepository) FindByExternalRef(ctx context.Context, channel, externalRef string) (*order.Order, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, o := range r.s.orders {
		if o.Channel == channel && o.ExternalRef.Valid && o.ExternalRef.String == externalRef {
			c := *o
			return &c, nil
		}
	}

	return nil, xerrors.ErrNotFound
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, upd order.PaidUpdate) error {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok || o.PaymentStatus != order.StatusPending {
		return xerrors.ErrInvalidStateTransition
	}

	o.PaymentStatus = order.StatusPaid
	o.GatewayTradeNo = sql.NullString{String: upd.GatewayTradeNo, Valid: true}
	o.PaymentMethod = sql.NullString{String: upd.PaymentMethod, Valid: true}
	o.PaidAt = sql.NullTime{Time: upd.PaidAt, Valid: true}
	o.ExpiresAt = sql.NullTime{Time: upd.ExpiresAt, Valid: true}
	o.RawCallback = sql.NullString{String: upd.RawCallback, Valid: true}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *OrderRepository) MarkFailed(ctx context.Context, orderID, gatewayTradeNo, rawCallback string) error {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok || o.PaymentStatus != order.StatusPending {
		return xerrors.ErrInvalidStateTransition
	}

	o.PaymentStatus = order.StatusFailed
	o.GatewayTradeNo = sql.NullString{String: gatewayTradeNo, Valid: true}
	o.RawCallback = sql.NullString{String: rawCallback, Valid: true}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *OrderRepository) MarkRefunded(ctx context.Context, orderID string, amount int64, reason string, refundedAt time.Time) error {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok || o.PaymentStatus != order.StatusPaid {
		return xerrors.ErrInvalidStateTransition
	}

	o.PaymentStatus = order.StatusRefunded
	o.RefundAmount = sql.NullInt64{Int64: amount, Valid: true}
	o.RefundReason = sql.NullString{String: reason, Valid: true}
	o.RefundedAt = sql.NullTime{Time: refundedAt, Valid: true}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *OrderRepository) SaveCodeIssuance(ctx context.Context, orderID string, iss order.CodeIssuance) error {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok || o.PaymentStatus != order.StatusPending {
		return xerrors.ErrInvalidStateTransition
	}

	o.GatewayTradeNo = sql.NullString{String: iss.GatewayTradeNo, Valid: true}
	o.PaymentMethod = sql.NullString{String: iss.PaymentMethod, Valid: true}
	o.PaymentCode = sql.NullString{String: iss.Code, Valid: true}
	o.PaymentCodeExpiresAt = sql.NullTime{Time: iss.CodeExpiresAt, Valid: true}
	o.PaymentBank = sql.NullString{String: iss.Bank, Valid: true}
	o.RawCallback = sql.NullString{String: iss.RawCallback, Valid: true}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *OrderRepository) SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error {
	unlock := r.s.lock()
	defer unlock()

	o, ok := r.s.orders[orderID]
	if !ok {
		return xerrors.ErrNotFound
	}

	o.InvoiceNumber = sql.NullString{String: invoiceNumber, Valid: true}
	o.UpdatedAt = time.Now()
	return nil
}
