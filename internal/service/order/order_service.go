// internal/service/order/order_service.go
package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository"

	"go.uber.org/zap"
)

type OrderService struct {
	ds     repository.Datastore
	gwCfg  gateway.Config
	codec  *gateway.Codec
	logger *zap.Logger

	notifyURL     string
	clientBackURL string
	now           func() time.Time
}

func NewOrderService(ds repository.Datastore, gwCfg gateway.Config, notifyURL, clientBackURL string, logger *zap.Logger) *OrderService {
	return &OrderService{
		ds:            ds,
		gwCfg:         gwCfg,
		codec:         gateway.NewCodec(gwCfg.HashKey, gwCfg.HashIV),
		logger:        logger,
		notifyURL:     notifyURL,
		clientBackURL: clientBackURL,
		now:           time.Now,
	}
}

// CreateOrder opens a pending purchase for the end-user path and returns the
// hosted-checkout payload. Lifetime purchases are rejected here: only the
// administrative path may create them.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *order.CreateOrderRequest) (*order.Order, *gateway.CheckoutPayload, error) {
	if req.PlanType == order.PlanLifetime {
		return nil, nil, xerrors.Wrap(xerrors.ErrForbidden, "lifetime plans are not purchasable on this path")
	}
	return s.createOrder(ctx, userID, req, order.ChannelGateway)
}

// CreateAdminOrder opens a pending purchase on behalf of a user, lifetime
// included. Callers must already be gated to administrators.
func (s *OrderService) CreateAdminOrder(ctx context.Context, userID int64, req *order.CreateOrderRequest) (*order.Order, *gateway.CheckoutPayload, error) {
	return s.createOrder(ctx, userID, req, order.ChannelAdmin)
}

func (s *OrderService) createOrder(ctx context.Context, userID int64, req *order.CreateOrderRequest, channel order.Channel) (*order.Order, *gateway.CheckoutPayload, error) {
	if !order.ValidPlan(req.PlanType) {
		return nil, nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown plan type %q", req.PlanType))
	}

	// Amount is derived server-side, never trusted from the client.
	amount, ok := order.PriceFor(req.PlanType)
	if !ok {
		return nil, nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("plan %q is not purchasable", req.PlanType))
	}

	now := s.now()
	o := &order.Order{
		OrderID:       s.generateOrderID(now),
		UserID:        userID,
		PlanType:      req.PlanType,
		Amount:        amount,
		Currency:      "TWD",
		PaymentStatus: order.StatusPending,
		Channel:       string(channel),
		BuyerName:     req.BuyerName,
		BuyerEmail:    req.BuyerEmail,
	}

	// Persist before handing anything to the browser: if this fails, no
	// payload leaves the service.
	if err := s.ds.Orders().Create(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("failed to persist order: %w", err)
	}

	payload, err := s.buildCheckoutPayload(o, now)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", o.OrderID),
		zap.Int64("user_id", userID),
		zap.String("plan_type", string(o.PlanType)),
		zap.Int64("amount", o.Amount),
	)

	return o, payload, nil
}

// GetOrder returns an order for its owner (or any caller when admin=true).
func (s *OrderService) GetOrder(ctx context.Context, userID int64, orderID string, admin bool) (*order.Order, error) {
	o, err := s.ds.Orders().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !admin && o.UserID != userID {
		return nil, xerrors.ErrNotFound
	}

	return o, nil
}

func (s *OrderService) buildCheckoutPayload(o *order.Order, now time.Time) (*gateway.CheckoutPayload, error) {
	fields := map[string]string{
		"MerchantID":        s.gwCfg.MerchantID,
		"MerchantTradeNo":   o.OrderID,
		"MerchantTradeDate": now.Format("2006/01/02 15:04:05"),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(o.Amount, 10),
		"TradeDesc":         "subscription purchase",
		"ItemName":          fmt.Sprintf("%s plan", o.PlanType),
		"ReturnURL":         s.notifyURL,
		"ClientBackURL":     s.clientBackURL,
		"ChoosePayment":     "ALL",
		"EncryptType":       "1",
	}

	mac, err := s.codec.Sign(fields)
	if err != nil {
		return nil, err
	}
	fields[gateway.MACField] = mac

	return &gateway.CheckoutPayload{
		Action: s.gwCfg.CheckoutURL,
		Fields: fields,
	}, nil
}

const orderIDCharset = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// generateOrderID builds a gateway-facing order id: traceable back to the
// creation time, carrying no user data, and bounded to the gateway's
// 20-character limit.
func (s *OrderService) generateOrderID(now time.Time) string {
	return fmt.Sprintf("S%s%s", now.Format("060102150405"), randomString(7))
}

func randomString(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(orderIDCharset)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			panic(fmt.Sprintf("random source unavailable: %v", err))
		}
		out[i] = orderIDCharset[idx.Int64()]
	}
	return string(out)
}
