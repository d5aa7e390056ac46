// internal/domain/license/entity.go
package license

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// License is the current entitlement of one user. At most one row per
// user_id; paid orders and redeemed activations both upsert into it.
type License struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Tier      string    `json:"tier" db:"tier"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Status    Status    `json:"status" db:"status"`
	Source    string    `json:"source" db:"source"`
	AutoRenew bool      `json:"auto_renew" db:"auto_renew"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the license grants entitlement at t.
func (l *License) IsActive(t time.Time) bool {
	return l.Status == StatusActive && t.Before(l.ExpiresAt)
}
