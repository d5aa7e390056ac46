// internal/domain/order/repository.go
package order

import (
	"context"
	"time"
)

// PaidUpdate carries the fields written when a pending order settles.
type PaidUpdate struct {
	GatewayTradeNo string
	PaymentMethod  string
	PaidAt         time.Time
	ExpiresAt      time.Time
	RawCallback    string
}

// CodeIssuance carries offline payment-code metadata from the first callback
// of a two-phase (ATM / convenience store) payment.
type CodeIssuance struct {
	GatewayTradeNo string
	PaymentMethod  string
	Code           string
	CodeExpiresAt  time.Time
	Bank           string
	RawCallback    string
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByOrderID(ctx context.Context, orderID string) (*Order, error)

	// FindByExternalRef locates the audit order created for a partner
	// channel's own reference, if any.
	FindByExternalRef(ctx context.Context, channel, externalRef string) (*Order, error)

	// State transitions. Each enforces its legal edge in the WHERE clause
	// and reports xerrors.ErrInvalidStateTransition when no row moved.
	MarkPaid(ctx context.Context, orderID string, upd PaidUpdate) error
	MarkFailed(ctx context.Context, orderID, gatewayTradeNo, rawCallback string) error
	MarkRefunded(ctx context.Context, orderID string, amount int64, reason string, refundedAt time.Time) error
	SaveCodeIssuance(ctx context.Context, orderID string, iss CodeIssuance) error

	SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error
}
