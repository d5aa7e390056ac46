// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"fmt"

	"settlement-service/internal/domain/activation"
	"settlement-service/internal/domain/license"
	"settlement-service/internal/domain/order"
	"settlement-service/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres implementation of repository.Datastore.
type Store struct {
	pool *pgxpool.Pool
	q    Querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Orders() order.Repository {
	return &OrderRepository{q: s.q}
}

func (s *Store) Licenses() license.Repository {
	return &LicenseRepository{q: s.q}
}

func (s *Store) Activations() activation.Repository {
	return &ActivationRepository{q: s.q}
}

// WithinTx runs fn against a Store bound to one pgx transaction. Nested
// calls reuse the ambient transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Datastore) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &Store{pool: s.pool, q: tx}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
