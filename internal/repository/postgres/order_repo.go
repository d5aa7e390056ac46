// internal/repository/postgres/order_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-service/internal/domain/order"
	xerrors "settlement-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type OrderRepository struct {
	q Querier
}

const orderColumns = `
	id, order_id, user_id, plan_type, amount, currency, payment_status, channel,
	buyer_name, buyer_email, external_ref,
	gateway_trade_no, payment_method,
	payment_code, payment_code_expires_at, payment_bank,
	paid_at, expires_at, invoice_number,
	refunded_at, refund_amount, refund_reason,
	raw_callback, created_at, updated_at`

// Create persists a new pending order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (
			order_id, user_id, plan_type, amount, currency, payment_status, channel,
			buyer_name, buyer_email, external_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		o.OrderID, o.UserID, o.PlanType, o.Amount, o.Currency, o.PaymentStatus, o.Channel,
		o.BuyerName, o.BuyerEmail, o.ExternalRef,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindByOrderID retrieves an order by its gateway-facing order id.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_id = $1`, orderColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, orderID))
}

// FindByExternalRef retrieves the audit order created for a partner
// channel's own reference.
func (r *OrderRepository) FindByExternalRef(ctx context.Context, channel, externalRef string) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE channel = $1 AND external_ref = $2`, orderColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, channel, externalRef))
}

func (r *OrderRepository) scanOne(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.PlanType, &o.Amount, &o.Currency, &o.PaymentStatus, &o.Channel,
		&o.BuyerName, &o.BuyerEmail, &o.ExternalRef,
		&o.GatewayTradeNo, &o.PaymentMethod,
		&o.PaymentCode, &o.PaymentCodeExpiresAt, &o.PaymentBank,
		&o.PaidAt, &o.ExpiresAt, &o.InvoiceNumber,
		&o.RefundedAt, &o.RefundAmount, &o.RefundReason,
		&o.RawCallback, &o.CreatedAt, &o.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return &o, nil
}

// MarkPaid moves a pending order to paid. The legal edge is enforced in the
// WHERE clause; zero rows affected means the order was not pending.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, upd order.PaidUpdate) error {
	query := `
		UPDATE orders
		SET payment_status = 'paid', gateway_trade_no = $2, payment_method = $3,
		    paid_at = $4, expires_at = $5, raw_callback = $6, updated_at = NOW()
		WHERE order_id = $1 AND payment_status = 'pending'
	`

	tag, err := r.q.Exec(ctx, query,
		orderID, upd.GatewayTradeNo, upd.PaymentMethod, upd.PaidAt, upd.ExpiresAt, upd.RawCallback)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrInvalidStateTransition
	}

	return nil
}

// MarkFailed moves a pending order to failed, keeping the raw payload.
func (r *OrderRepository) MarkFailed(ctx context.Context, orderID, gatewayTradeNo, rawCallback string) error {
	query := `
		UPDATE orders
		SET payment_status = 'failed', gateway_trade_no = $2, raw_callback = $3, updated_at = NOW()
		WHERE order_id = $1 AND payment_status = 'pending'
	`

	tag, err := r.q.Exec(ctx, query, orderID, gatewayTradeNo, rawCallback)
	if err != nil {
		return fmt.Errorf("failed to mark order failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrInvalidStateTransition
	}

	return nil
}

// MarkRefunded moves a paid order to refunded and records the outcome.
func (r *OrderRepository) MarkRefunded(ctx context.Context, orderID string, amount int64, reason string, refundedAt time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = 'refunded', refund_amount = $2, refund_reason = $3,
		    refunded_at = $4, updated_at = NOW()
		WHERE order_id = $1 AND payment_status = 'paid'
	`

	tag, err := r.q.Exec(ctx, query, orderID, amount, reason, refundedAt)
	if err != nil {
		return fmt.Errorf("failed to mark order refunded: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrInvalidStateTransition
	}

	return nil
}

// SaveCodeIssuance stores offline payment-code metadata from the first
// callback of a two-phase payment. The order stays pending.
func (r *OrderRepository) SaveCodeIssuance(ctx context.Context, orderID string, iss order.CodeIssuance) error {
	query := `
		UPDATE orders
		SET gateway_trade_no = $2, payment_method = $3,
		    payment_code = $4, payment_code_expires_at = $5, payment_bank = $6,
		    raw_callback = $7, updated_at = NOW()
		WHERE order_id = $1 AND payment_status = 'pending'
	`

	tag, err := r.q.Exec(ctx, query,
		orderID, iss.GatewayTradeNo, iss.PaymentMethod, iss.Code, iss.CodeExpiresAt, iss.Bank, iss.RawCallback)
	if err != nil {
		return fmt.Errorf("failed to save code issuance: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrInvalidStateTransition
	}

	return nil
}

// SetInvoiceNumber records the e-invoice issued for a settled order.
func (r *OrderRepository) SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error {
	query := `UPDATE orders SET invoice_number = $2, updated_at = NOW() WHERE order_id = $1`

	tag, err := r.q.Exec(ctx, query, orderID, invoiceNumber)
	if err != nil {
		return fmt.Errorf("failed to set invoice number: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
