// internal/repository/memory/activation_repo.go
package memory

import (
	"context"
	"database/sql"
	"time"

	"settlement-service/internal/domain/activation"
	xerrors "settlement-service/internal/pkg/errors"
)

type ActivationRepository struct {
	s *Store
}

func (r *ActivationRepository) Create(ctx context.Context, a *activation.LicenseActivation) error {
	unlock := r.s.lock()
	defer unlock()

	if _, exists := r.s.activations[a.ActivationToken]; exists {
		return xerrors.ErrConflict
	}

	now := time.Now()
	a.ID = r.s.nextID()
	a.CreatedAt = now
	a.UpdatedAt = now

	c := *a
	r.s.activations[a.ActivationToken] = &c
	return nil
}

func (r *ActivationRepository) FindByToken(ctx context.Context, token string) (*activation.LicenseActivation, error) {
	unlock := r.s.lock()
	defer unlock()

	a, ok := r.s.activations[token]
	if !ok {
		return nil, xerrors.ErrNotFound
	}

	c := *a
	return &c, nil
}

func (r *ActivationRepository) FindByChannelOrder(ctx context.Context, channel, orderID string) (*activation.LicenseActivation, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, a := range r.s.activations {
		if a.Channel == channel && a.OrderID == orderID {
			c := *a
			return &c, nil
		}
	}

	return nil, xerrors.ErrNotFound
}

// Claim mirrors the conditional UPDATE of the Postgres store: the status
// check and the write happen under one mutex hold, so exactly one caller
// wins the pending row.
func (r *ActivationRepository) Claim(ctx context.Context, token string, userID int64, now time.Time) (bool, error) {
	unlock := r.s.lock()
	defer unlock()

	a, ok := r.s.activations[token]
	if !ok || a.Status != activation.StatusPending {
		return false, nil
	}

	a.Status = activation.StatusActivated
	a.ActivatedByUserID = sql.NullInt64{Int64: userID, Valid: true}
	a.ActivatedAt = sql.NullTime{Time: now, Valid: true}
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *ActivationRepository) MarkExpired(ctx context.Context, token string) error {
	unlock := r.s.lock()
	defer unlock()

	a, ok := r.s.activations[token]
	if !ok || a.Status != activation.StatusPending {
		return nil
	}

	a.Status = activation.StatusExpired
	a.UpdatedAt = time.Now()
	return nil
}
