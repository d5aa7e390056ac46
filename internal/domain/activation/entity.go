// internal/domain/activation/entity.go
package activation

import (
	"database/sql"
	"time"

	"settlement-service/internal/domain/order"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActivated Status = "activated"
	StatusExpired   Status = "expired"
)

// TokenLength is the hex length of an activation token (32 random bytes).
const TokenLength = 64

// LinkValidity is the fixed redemption window of a mailed activation link.
const LinkValidity = 7 * 24 * time.Hour

// LicenseActivation is a single-use redemption link for purchases made
// through channels that never touch the payment gateway (resellers, course
// platforms). Status only moves pending -> activated or pending -> expired;
// once activated the row is immutable. Never deleted: kept for audit.
type LicenseActivation struct {
	ID              int64          `json:"id" db:"id"`
	ActivationToken string         `json:"-" db:"activation_token"`
	Channel         string         `json:"channel" db:"channel"`
	OrderID         string         `json:"order_id" db:"order_id"`
	Email           string         `json:"email" db:"email"`
	PlanType        order.PlanType `json:"plan_type" db:"plan_type"`
	Amount          int64          `json:"amount" db:"amount"`
	Status          Status         `json:"status" db:"status"`

	ActivatedAt       sql.NullTime  `json:"activated_at,omitempty" db:"activated_at"`
	ActivatedByUserID sql.NullInt64 `json:"activated_by_user_id,omitempty" db:"activated_by_user_id"`

	LinkExpiresAt    time.Time `json:"link_expires_at" db:"link_expires_at"`
	LicenseExpiresAt time.Time `json:"license_expires_at" db:"license_expires_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LinkExpired reports whether the redemption window has closed at t.
// The boundary itself counts as expired.
func (a *LicenseActivation) LinkExpired(t time.Time) bool {
	return !t.Before(a.LinkExpiresAt)
}
