// internal/service/webhook/processor_test.go
package webhook

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	"settlement-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*Processor, *memory.Store, *gateway.Codec) {
	t.Helper()
	store := memory.NewStore()
	codec := gateway.NewCodec("5294y06JbISpM5x9", "v77hoKGq4kWxNNIS")
	p := NewProcessor(store, codec, nil, zap.NewNop())
	p.now = func() time.Time { return testNow }
	return p, store, codec
}

func seedPendingOrder(t *testing.T, store *memory.Store, plan order.PlanType, amount int64) *order.Order {
	t.Helper()
	o := &order.Order{
		OrderID:       "S260102120000ABCDEFG",
		UserID:        42,
		PlanType:      plan,
		Amount:        amount,
		Currency:      "TWD",
		PaymentStatus: order.StatusPending,
		Channel:       string(order.ChannelGateway),
		BuyerName:     "Lin Buyer",
		BuyerEmail:    "buyer@example.com",
	}
	require.NoError(t, store.Orders().Create(context.Background(), o))
	return o
}

// signedCallback builds a form-encoded delivery carrying a valid MAC.
func signedCallback(t *testing.T, codec *gateway.Codec, fields map[string]string) url.Values {
	t.Helper()
	mac, err := codec.Sign(fields)
	require.NoError(t, err)

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set(gateway.MACField, mac)
	return values
}

func successFields(o *order.Order) map[string]string {
	return map[string]string{
		"MerchantID":      "3002607",
		"MerchantTradeNo": o.OrderID,
		"TradeNo":         "2601021234567890",
		"RtnCode":         gateway.RtnCodeSuccess,
		"RtnMsg":          "Succeeded",
		"TradeAmt":        strconv.FormatInt(o.Amount, 10),
		"PaymentDate":     "2026/01/02 12:34:56",
		"PaymentType":     "Credit_CreditCard",
	}
}

func TestHandle_SettlesOrderAndGrantsLicense(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanYearly, 8280)

	ack := p.Handle(ctx, signedCallback(t, codec, successFields(o)))
	assert.Equal(t, gateway.AckSuccess, ack)

	settled, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, settled.PaymentStatus)
	assert.Equal(t, "2601021234567890", settled.GatewayTradeNo.String)
	require.True(t, settled.PaidAt.Valid)

	lic, err := store.Licenses().FindByUserID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, string(order.PlanYearly), lic.Tier)
	assert.True(t, lic.IsActive(testNow))

	wantExpiry, err := order.ExpiryForPlan(order.PlanYearly, settled.PaidAt.Time)
	require.NoError(t, err)
	assert.True(t, wantExpiry.Equal(lic.ExpiresAt))
}

func TestHandle_DuplicateDeliveryIsAbsorbed(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanYearly, 8280)
	values := signedCallback(t, codec, successFields(o))

	require.Equal(t, gateway.AckSuccess, p.Handle(ctx, values))
	first, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)

	// Same delivery again: acked, nothing rewritten.
	assert.Equal(t, gateway.AckSuccess, p.Handle(ctx, values))
	second, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)

	assert.Equal(t, order.StatusPaid, second.PaymentStatus)
	assert.True(t, first.PaidAt.Time.Equal(second.PaidAt.Time), "paid_at must survive redelivery")
}

func TestHandle_BadSignatureLeavesOrderUntouched(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanYearly, 8280)

	values := signedCallback(t, codec, successFields(o))
	values.Set("TradeAmt", "1") // invalidates the MAC

	assert.Equal(t, gateway.AckFailure, p.Handle(ctx, values))

	got, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.PaymentStatus)
}

func TestHandle_AmountMismatchNeverSettles(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanYearly, 8280)

	// Validly signed, but the settled figure is not what the order asked for.
	fields := successFields(o)
	fields["TradeAmt"] = "1"
	ack := p.Handle(ctx, signedCallback(t, codec, fields))
	assert.Equal(t, gateway.AckFailure, ack)

	got, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.PaymentStatus)

	_, err = store.Licenses().FindByUserID(ctx, 42)
	assert.Error(t, err, "no license may be granted on a mismatched amount")
}

func TestHandle_BusinessFailureStillAcksSuccess(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanMonthly, 880)

	fields := successFields(o)
	fields["RtnCode"] = "10100252"
	fields["RtnMsg"] = "card declined"

	// The decline is recorded, and the gateway must not redeliver it.
	ack := p.Handle(ctx, signedCallback(t, codec, fields))
	assert.Equal(t, gateway.AckSuccess, ack)

	got, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, got.PaymentStatus)

	_, err = store.Licenses().FindByUserID(ctx, 42)
	assert.Error(t, err)
}

func TestHandle_OfflineCodeIssuanceKeepsOrderPending(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanMonthly, 880)

	fields := successFields(o)
	fields["RtnCode"] = gateway.RtnCodeATMIssued
	fields["RtnMsg"] = "ATM virtual account issued"
	fields["PaymentType"] = "ATM_LAND"
	fields["BankCode"] = "812"
	fields["vAccount"] = "9103522175887271"
	fields["ExpireDate"] = "2026/01/05 23:59:59"

	ack := p.Handle(ctx, signedCallback(t, codec, fields))
	assert.Equal(t, gateway.AckSuccess, ack)

	got, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.PaymentStatus)
	assert.Equal(t, "9103522175887271", got.PaymentCode.String)
	assert.Equal(t, "812", got.PaymentBank.String)
	require.True(t, got.PaymentCodeExpiresAt.Valid)

	// The paying callback arrives later and settles as usual.
	ack = p.Handle(ctx, signedCallback(t, codec, successFields(o)))
	assert.Equal(t, gateway.AckSuccess, ack)

	got, err = store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.PaymentStatus)
}

func TestHandle_UnknownOrderAcksFailure(t *testing.T) {
	p, _, codec := newTestProcessor(t)

	fields := map[string]string{
		"MerchantTradeNo": "S000000000000XXXXXXX",
		"TradeNo":         "123",
		"RtnCode":         gateway.RtnCodeSuccess,
		"TradeAmt":        "880",
	}
	ack := p.Handle(context.Background(), signedCallback(t, codec, fields))
	assert.Equal(t, gateway.AckFailure, ack)
}

func TestHandle_MissingTradeNoAcksFailure(t *testing.T) {
	p, _, codec := newTestProcessor(t)

	fields := map[string]string{"RtnCode": gateway.RtnCodeSuccess, "TradeAmt": "880"}
	ack := p.Handle(context.Background(), signedCallback(t, codec, fields))
	assert.Equal(t, gateway.AckFailure, ack)
}

func TestHandle_UnknownTierNeverDefaults(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanType("platinum"), 8280)

	ack := p.Handle(ctx, signedCallback(t, codec, successFields(o)))
	assert.Equal(t, gateway.AckFailure, ack, "unknown tier must fail loudly, not settle")

	got, err := store.Orders().FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.PaymentStatus)
}

func TestHandle_LifetimeSettlesToSentinel(t *testing.T) {
	p, store, codec := newTestProcessor(t)
	ctx := context.Background()
	o := seedPendingOrder(t, store, order.PlanLifetime, 29800)

	ack := p.Handle(ctx, signedCallback(t, codec, successFields(o)))
	assert.Equal(t, gateway.AckSuccess, ack)

	lic, err := store.Licenses().FindByUserID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, order.LifetimeSentinel.Equal(lic.ExpiresAt))
}
