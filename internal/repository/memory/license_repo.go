// internal/repository/memory/license_repo.go
package memory

import (
	"context"
	"time"

	"settlement-service/internal/domain/license"
	xerrors "settlement-service/internal/pkg/errors"
)

type LicenseRepository struct {
	s *Store
}

func (r *LicenseRepository) FindByUserID(ctx context.Context, userID int64) (*license.License, error) {
	unlock := r.s.lock()
	defer unlock()

	l, ok := r.s.licenses[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}

	c := *l
	return &c, nil
}

func (r *LicenseRepository) Upsert(ctx context.Context, l *license.License) error {
	unlock := r.s.lock()
	defer unlock()

	now := time.Now()
	if existing, ok := r.s.licenses[l.UserID]; ok {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
	} else {
		l.ID = r.s.nextID()
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	c := *l
	r.s.licenses[l.UserID] = &c
	return nil
}

func (r *LicenseRepository) Cancel(ctx context.Context, userID int64) error {
	unlock := r.s.lock()
	defer unlock()

	l, ok := r.s.licenses[userID]
	if !ok {
		return xerrors.ErrNotFound
	}

	l.Status = license.StatusCancelled
	l.UpdatedAt = time.Now()
	return nil
}
