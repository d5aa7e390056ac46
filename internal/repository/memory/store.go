// internal/repository/memory/store.go
package memory

import (
	"context"
	"sync"

	"settlement-service/internal/domain/activation"
	"settlement-service/internal/domain/license"
	"settlement-service/internal/domain/order"
	"settlement-service/internal/repository"
)

// Store is an in-memory implementation of repository.Datastore, backed by
// mutex-guarded maps. It is interchangeable with the Postgres store and is
// what the service tests run against.
type Store struct {
	mu   *sync.Mutex
	inTx bool

	orders      map[string]*order.Order                  // by order_id
	licenses    map[int64]*license.License               // by user_id
	activations map[string]*activation.LicenseActivation // by token
	seq         *int64
}

func NewStore() *Store {
	var seq int64
	return &Store{
		mu:          &sync.Mutex{},
		orders:      make(map[string]*order.Order),
		licenses:    make(map[int64]*license.License),
		activations: make(map[string]*activation.LicenseActivation),
		seq:         &seq,
	}
}

func (s *Store) Orders() order.Repository {
	return &OrderRepository{s: s}
}

func (s *Store) Licenses() license.Repository {
	return &LicenseRepository{s: s}
}

func (s *Store) Activations() activation.Repository {
	return &ActivationRepository{s: s}
}

// WithinTx serializes the transaction under the store mutex and restores a
// snapshot of all tables when fn fails, so partial application is impossible
// here too.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Datastore) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapOrders, snapLicenses, snapActivations := s.snapshot()

	tx := &Store{
		mu:          s.mu,
		inTx:        true,
		orders:      s.orders,
		licenses:    s.licenses,
		activations: s.activations,
		seq:         s.seq,
	}

	if err := fn(tx); err != nil {
		s.restore(snapOrders, snapLicenses, snapActivations)
		return err
	}

	return nil
}

// lock acquires the store mutex unless an enclosing transaction already
// holds it.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) nextID() int64 {
	*s.seq++
	return *s.seq
}

func (s *Store) snapshot() (map[string]*order.Order, map[int64]*license.License, map[string]*activation.LicenseActivation) {
	orders := make(map[string]*order.Order, len(s.orders))
	for k, v := range s.orders {
		c := *v
		orders[k] = &c
	}
	licenses := make(map[int64]*license.License, len(s.licenses))
	for k, v := range s.licenses {
		c := *v
		licenses[k] = &c
	}
	activations := make(map[string]*activation.LicenseActivation, len(s.activations))
	for k, v := range s.activations {
		c := *v
		activations[k] = &c
	}
	return orders, licenses, activations
}

func (s *Store) restore(orders map[string]*order.Order, licenses map[int64]*license.License, activations map[string]*activation.LicenseActivation) {
	clearMap(s.orders)
	for k, v := range orders {
		s.orders[k] = v
	}
	clearMap(s.licenses)
	for k, v := range licenses {
		s.licenses[k] = v
	}
	clearMap(s.activations)
	for k, v := range activations {
		s.activations[k] = v
	}
}

func clearMap[K comparable, V any](m map[K]V) {
	for k := range m {
		delete(m, k)
	}
}
