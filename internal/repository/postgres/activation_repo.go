// internal/repository/postgres/activation_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-service/internal/domain/activation"
	xerrors "settlement-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type ActivationRepository struct {
	q Querier
}

const activationColumns = `
	id, activation_token, channel, order_id, email, plan_type, amount, status,
	activated_at, activated_by_user_id, link_expires_at, license_expires_at,
	created_at, updated_at`

// Create persists a new pending activation.
func (r *ActivationRepository) Create(ctx context.Context, a *activation.LicenseActivation) error {
	query := `
		INSERT INTO license_activations (
			activation_token, channel, order_id, email, plan_type, amount, status,
			link_expires_at, license_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		a.ActivationToken, a.Channel, a.OrderID, a.Email, a.PlanType, a.Amount, a.Status,
		a.LinkExpiresAt, a.LicenseExpiresAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create activation: %w", err)
	}

	return nil
}

// FindByToken retrieves an activation by its token.
func (r *ActivationRepository) FindByToken(ctx context.Context, token string) (*activation.LicenseActivation, error) {
	query := fmt.Sprintf(`SELECT %s FROM license_activations WHERE activation_token = $1`, activationColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, token))
}

// FindByChannelOrder retrieves an activation by the partner channel's own
// order reference.
func (r *ActivationRepository) FindByChannelOrder(ctx context.Context, channel, orderID string) (*activation.LicenseActivation, error) {
	query := fmt.Sprintf(`SELECT %s FROM license_activations WHERE channel = $1 AND order_id = $2`, activationColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, channel, orderID))
}

// Claim performs the conditional redemption update and reports whether this
// caller won the row. Guarding on status = 'pending' in the WHERE clause is
// what makes redemption exactly-once under concurrent requests.
func (r *ActivationRepository) Claim(ctx context.Context, token string, userID int64, now time.Time) (bool, error) {
	query := `
		UPDATE license_activations
		SET status = 'activated', activated_by_user_id = $2, activated_at = $3, updated_at = NOW()
		WHERE activation_token = $1 AND status = 'pending'
	`

	tag, err := r.q.Exec(ctx, query, token, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim activation: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkExpired moves a pending activation to expired.
func (r *ActivationRepository) MarkExpired(ctx context.Context, token string) error {
	query := `
		UPDATE license_activations
		SET status = 'expired', updated_at = NOW()
		WHERE activation_token = $1 AND status = 'pending'
	`

	if _, err := r.q.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("failed to mark activation expired: %w", err)
	}

	return nil
}

func (r *ActivationRepository) scanOne(row pgx.Row) (*activation.LicenseActivation, error) {
	var a activation.LicenseActivation
	err := row.Scan(
		&a.ID, &a.ActivationToken, &a.Channel, &a.OrderID, &a.Email, &a.PlanType, &a.Amount, &a.Status,
		&a.ActivatedAt, &a.ActivatedByUserID, &a.LinkExpiresAt, &a.LicenseExpiresAt,
		&a.CreatedAt, &a.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activation: %w", err)
	}

	return &a, nil
}
