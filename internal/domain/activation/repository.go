// internal/domain/activation/repository.go
package activation

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *LicenseActivation) error
	FindByToken(ctx context.Context, token string) (*LicenseActivation, error)
	FindByChannelOrder(ctx context.Context, channel, orderID string) (*LicenseActivation, error)

	// Claim performs the conditional redemption update:
	//   SET status='activated', activated_by_user_id=$user, activated_at=$now
	//   WHERE activation_token=$token AND status='pending'
	// and reports whether a row was claimed. A false return under a pending
	// read means another request won the race. This is the load-bearing
	// concurrency guarantee: a plain read-then-write inside a transaction is
	// not enough under every isolation level.
	Claim(ctx context.Context, token string, userID int64, now time.Time) (bool, error)

	// MarkExpired moves a pending activation to expired.
	MarkExpired(ctx context.Context, token string) error
}
