// internal/domain/order/entity.go
package order

import (
	"database/sql"
	"time"
)

type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanTwoYear  PlanType = "two_year"
	PlanLifetime PlanType = "lifetime"
	PlanTrial    PlanType = "trial"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusPaid     PaymentStatus = "paid"
	StatusFailed   PaymentStatus = "failed"
	StatusRefunded PaymentStatus = "refunded"
)

// Channel identifies where a purchase originated.
type Channel string

const (
	ChannelGateway Channel = "gateway"
	ChannelAdmin   Channel = "admin"
)

// LifetimeSentinel is the expiry recorded for lifetime purchases. A concrete
// far-future date keeps every expiry comparison uniform.
var LifetimeSentinel = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// MaxOrderIDLength is the gateway's limit on merchant trade numbers.
const MaxOrderIDLength = 20

// Order is one purchase attempt. OrderID is immutable once created and
// payment_status only moves forward: pending -> {paid|failed}, paid -> refunded.
type Order struct {
	ID            int64         `json:"id" db:"id"`
	OrderID       string        `json:"order_id" db:"order_id"`
	UserID        int64         `json:"user_id" db:"user_id"`
	PlanType      PlanType      `json:"plan_type" db:"plan_type"`
	Amount        int64         `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	Channel       string        `json:"channel" db:"channel"`
	BuyerName     string        `json:"buyer_name" db:"buyer_name"`
	BuyerEmail    string        `json:"buyer_email" db:"buyer_email"`

	// ExternalRef is a partner channel's own order reference for purchases
	// that entered through an activation link.
	ExternalRef sql.NullString `json:"external_ref,omitempty" db:"external_ref"`

	// Gateway references
	GatewayTradeNo sql.NullString `json:"gateway_trade_no,omitempty" db:"gateway_trade_no"`
	PaymentMethod  sql.NullString `json:"payment_method,omitempty" db:"payment_method"`

	// Offline payment code issuance (ATM / convenience store)
	PaymentCode          sql.NullString `json:"payment_code,omitempty" db:"payment_code"`
	PaymentCodeExpiresAt sql.NullTime   `json:"payment_code_expires_at,omitempty" db:"payment_code_expires_at"`
	PaymentBank          sql.NullString `json:"payment_bank,omitempty" db:"payment_bank"`

	// Settlement
	PaidAt        sql.NullTime   `json:"paid_at,omitempty" db:"paid_at"`
	ExpiresAt     sql.NullTime   `json:"expires_at,omitempty" db:"expires_at"`
	InvoiceNumber sql.NullString `json:"invoice_number,omitempty" db:"invoice_number"`

	// Refund
	RefundedAt   sql.NullTime   `json:"refunded_at,omitempty" db:"refunded_at"`
	RefundAmount sql.NullInt64  `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundReason sql.NullString `json:"refund_reason,omitempty" db:"refund_reason"`

	// Raw gateway payload kept for audit
	RawCallback sql.NullString `json:"-" db:"raw_callback"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidPlan reports whether p is a purchasable plan type.
func ValidPlan(p PlanType) bool {
	switch p {
	case PlanMonthly, PlanYearly, PlanTwoYear, PlanLifetime, PlanTrial:
		return true
	}
	return false
}

// IsPaid reports whether the order has settled successfully.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == StatusPaid
}
