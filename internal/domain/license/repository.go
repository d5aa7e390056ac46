// internal/domain/license/repository.go
package license

import "context"

type Repository interface {
	FindByUserID(ctx context.Context, userID int64) (*License, error)

	// Upsert inserts or replaces the single license row of l.UserID.
	Upsert(ctx context.Context, l *License) error

	// Cancel flips status without deleting history.
	Cancel(ctx context.Context, userID int64) error
}
