// internal/repository/datastore.go
package repository

import (
	"context"

	"settlement-service/internal/domain/activation"
	"settlement-service/internal/domain/license"
	"settlement-service/internal/domain/order"
)

// Datastore is the only boundary between the settlement core and the
// persistence layer. Two implementations exist: repository/postgres for
// production and repository/memory for tests, interchangeable behind this
// interface.
type Datastore interface {
	Orders() order.Repository
	Licenses() license.Repository
	Activations() activation.Repository

	// WithinTx runs fn with a Datastore whose repositories are bound to one
	// transaction. A nil return commits, any error rolls everything back.
	// Cross-table updates (order settlement + license upsert, redemption +
	// audit order) must run inside WithinTx: partially applied outcomes are
	// never acceptable.
	WithinTx(ctx context.Context, fn func(tx Datastore) error) error
}
