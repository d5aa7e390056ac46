// internal/service/order/order_service_test.go
package order

import (
	"context"
	"testing"
	"time"

	domain "settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*OrderService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewOrderService(store, gateway.Config{
		MerchantID:  "3002607",
		HashKey:     "5294y06JbISpM5x9",
		HashIV:      "v77hoKGq4kWxNNIS",
		CheckoutURL: "https://payment-stage.example.com/Cashier/AioCheckOut/V5",
	}, "https://api.example.com/callbacks/payment", "https://app.example.com/orders", zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func validRequest(plan domain.PlanType) *domain.CreateOrderRequest {
	return &domain.CreateOrderRequest{
		PlanType:   plan,
		BuyerName:  "Lin Buyer",
		BuyerEmail: "buyer@example.com",
	}
}

func TestCreateOrder_ServerSidePricing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	o, payload, err := svc.CreateOrder(ctx, 42, validRequest(domain.PlanYearly))
	require.NoError(t, err)

	assert.Equal(t, int64(8280), o.Amount)
	assert.Equal(t, "TWD", o.Currency)
	assert.Equal(t, domain.StatusPending, o.PaymentStatus)
	assert.Equal(t, "8280", payload.Fields["TotalAmount"])

	persisted, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, persisted.PaymentStatus)
	assert.Equal(t, int64(42), persisted.UserID)
}

func TestCreateOrder_CheckoutPayloadIsSigned(t *testing.T) {
	svc, _ := newTestService(t)

	_, payload, err := svc.CreateOrder(context.Background(), 42, validRequest(domain.PlanMonthly))
	require.NoError(t, err)

	assert.Equal(t, "https://payment-stage.example.com/Cashier/AioCheckOut/V5", payload.Action)
	assert.NotEmpty(t, payload.Fields[gateway.MACField])

	ok, err := gateway.NewCodec("5294y06JbISpM5x9", "v77hoKGq4kWxNNIS").Verify(payload.Fields)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateOrder_OrderIDWithinGatewayLimit(t *testing.T) {
	svc, _ := newTestService(t)

	o, _, err := svc.CreateOrder(context.Background(), 42, validRequest(domain.PlanMonthly))
	require.NoError(t, err)

	assert.LessOrEqual(t, len(o.OrderID), domain.MaxOrderIDLength)
	assert.Equal(t, byte('S'), o.OrderID[0])
}

func TestCreateOrder_LifetimeRejectedOnUserPath(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateOrder(ctx, 42, validRequest(domain.PlanLifetime))
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// Allowed through the administrative path.
	o, _, err := svc.CreateAdminOrder(ctx, 42, validRequest(domain.PlanLifetime))
	require.NoError(t, err)
	assert.Equal(t, int64(29800), o.Amount)
	assert.Equal(t, string(domain.ChannelAdmin), o.Channel)

	persisted, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanLifetime, persisted.PlanType)
}

func TestCreateOrder_RejectsUnpurchasablePlans(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateOrder(ctx, 42, validRequest(domain.PlanTrial))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, _, err = svc.CreateOrder(ctx, 42, validRequest(domain.PlanType("platinum")))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestGetOrder_OwnershipScoped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, _, err := svc.CreateOrder(ctx, 42, validRequest(domain.PlanMonthly))
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, 42, o.OrderID, false)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, got.OrderID)

	// Another user sees not-found, not forbidden: order ids must not leak.
	_, err = svc.GetOrder(ctx, 7, o.OrderID, false)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	// Admins can read any order.
	_, err = svc.GetOrder(ctx, 7, o.OrderID, true)
	assert.NoError(t, err)
}

func TestGenerateOrderID_Unique(t *testing.T) {
	svc, _ := newTestService(t)

	seen := make(map[string]struct{})
	now := time.Now()
	for i := 0; i < 200; i++ {
		id := svc.generateOrderID(now)
		_, dup := seen[id]
		require.False(t, dup, "duplicate order id %s", id)
		seen[id] = struct{}{}
	}
}
