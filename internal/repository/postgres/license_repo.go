// internal/repository/postgres/license_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-service/internal/domain/license"
	xerrors "settlement-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type LicenseRepository struct {
	q Querier
}

// FindByUserID retrieves the current entitlement of a user.
func (r *LicenseRepository) FindByUserID(ctx context.Context, userID int64) (*license.License, error) {
	query := `
		SELECT id, user_id, tier, expires_at, status, source, auto_renew, created_at, updated_at
		FROM licenses
		WHERE user_id = $1
	`

	var l license.License
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&l.ID, &l.UserID, &l.Tier, &l.ExpiresAt, &l.Status, &l.Source, &l.AutoRenew,
		&l.CreatedAt, &l.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find license: %w", err)
	}

	return &l, nil
}

// Upsert inserts or replaces the single license row for l.UserID.
func (r *LicenseRepository) Upsert(ctx context.Context, l *license.License) error {
	query := `
		INSERT INTO licenses (user_id, tier, expires_at, status, source, auto_renew)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, expires_at = EXCLUDED.expires_at,
		    status = EXCLUDED.status, source = EXCLUDED.source,
		    auto_renew = EXCLUDED.auto_renew, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		l.UserID, l.Tier, l.ExpiresAt, l.Status, l.Source, l.AutoRenew,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert license: %w", err)
	}

	return nil
}

// Cancel flips the license status without deleting history.
func (r *LicenseRepository) Cancel(ctx context.Context, userID int64) error {
	query := `UPDATE licenses SET status = 'cancelled', updated_at = NOW() WHERE user_id = $1`

	tag, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to cancel license: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
