// internal/service/activation/activation_service.go
package activation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"settlement-service/internal/domain/activation"
	"settlement-service/internal/domain/license"
	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Mailer delivers activation links. Satisfied by the SMTP email sender.
type Mailer interface {
	SendActivationLink(to, activationURL string, linkExpiresAt time.Time) error
}

// Service issues and redeems single-use activation links for channels that
// never touch the payment gateway.
type Service struct {
	ds       repository.Datastore
	channels map[string]*gateway.Codec // per-channel webhook codecs
	mailer   Mailer
	baseURL  string // e.g. https://app.example.com/activate
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(ds repository.Datastore, channels map[string]*gateway.Codec, mailer Mailer, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		ds:       ds,
		channels: channels,
		mailer:   mailer,
		baseURL:  baseURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue records a pending entitlement from a partner channel and mails the
// activation link. Redelivered partner webhooks return the existing
// activation instead of minting a second token.
func (s *Service) Issue(ctx context.Context, req *activation.IssueRequest) (*activation.LicenseActivation, string, error) {
	codec, ok := s.channels[req.Channel]
	if !ok {
		return nil, "", xerrors.Wrap(xerrors.ErrForbidden, fmt.Sprintf("unknown channel %q", req.Channel))
	}

	params := map[string]string{
		"channel":        req.Channel,
		"order_id":       req.OrderID,
		"email":          req.Email,
		"plan_type":      string(req.PlanType),
		"amount":         strconv.FormatInt(req.Amount, 10),
		gateway.MACField: req.Signature,
	}
	verified, err := codec.Verify(params)
	if err != nil {
		return nil, "", err
	}
	if !verified {
		return nil, "", xerrors.Wrap(xerrors.ErrSignature, "channel webhook signature mismatch")
	}

	if !order.ValidPlan(req.PlanType) {
		return nil, "", xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown plan type %q", req.PlanType))
	}

	if existing, err := s.ds.Activations().FindByChannelOrder(ctx, req.Channel, req.OrderID); err == nil {
		return existing, s.activationURL(existing.ActivationToken), nil
	}

	now := s.now()

	// Pre-computed entitlement end. Trial is recomputed at redemption so the
	// user gets the full window from first use; this value is its ceiling.
	licenseExpiresAt, err := order.ExpiryForPlan(req.PlanType, now)
	if err != nil {
		return nil, "", err
	}

	a := &activation.LicenseActivation{
		ActivationToken:  newToken(),
		Channel:          req.Channel,
		OrderID:          req.OrderID,
		Email:            strings.ToLower(req.Email),
		PlanType:         req.PlanType,
		Amount:           req.Amount,
		Status:           activation.StatusPending,
		LinkExpiresAt:    now.Add(activation.LinkValidity),
		LicenseExpiresAt: licenseExpiresAt,
	}

	if err := s.ds.Activations().Create(ctx, a); err != nil {
		return nil, "", fmt.Errorf("failed to create activation: %w", err)
	}

	activationURL := s.activationURL(a.ActivationToken)

	if s.mailer != nil {
		if err := s.mailer.SendActivationLink(a.Email, activationURL, a.LinkExpiresAt); err != nil {
			// The row exists; support can resend the link.
			s.logger.Error("failed to send activation email",
				zap.String("channel", a.Channel),
				zap.String("order_id", a.OrderID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("activation issued",
		zap.String("channel", a.Channel),
		zap.String("order_id", a.OrderID),
		zap.String("plan_type", string(a.PlanType)),
	)

	return a, activationURL, nil
}

// Redeem consumes an activation token for the authenticated user. Exactly
// one concurrent caller wins the pending row; everyone else gets a conflict
// (or, for the same buyer re-clicking an old mail, an idempotent success).
func (s *Service) Redeem(ctx context.Context, token string, userID int64, userEmail string) (*activation.RedemptionResult, error) {
	if !validToken(token) {
		// Shape-checked before touching storage.
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "malformed activation token")
	}

	a, err := s.ds.Activations().FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if a.Status == activation.StatusActivated {
		return s.redeemedAlready(ctx, a, userID, userEmail, now)
	}

	if a.Status == activation.StatusExpired || a.LinkExpired(now) {
		if a.Status == activation.StatusPending {
			if err := s.ds.Activations().MarkExpired(ctx, token); err != nil {
				s.logger.Warn("failed to mark activation expired", zap.Error(err))
			}
		}
		return nil, xerrors.Wrap(xerrors.ErrExpired, "activation link has expired, contact support for a new one")
	}

	expiresAt, err := s.entitlementEnd(a, now)
	if err != nil {
		return nil, err
	}

	err = s.ds.WithinTx(ctx, func(tx repository.Datastore) error {
		claimed, err := tx.Activations().Claim(ctx, token, userID, now)
		if err != nil {
			return err
		}
		if !claimed {
			// Another request redeemed this token between our read and the
			// conditional update.
			return xerrors.ErrConcurrencyConflict
		}

		if err := tx.Licenses().Upsert(ctx, &license.License{
			UserID:    userID,
			Tier:      string(a.PlanType),
			ExpiresAt: expiresAt,
			Status:    license.StatusActive,
			Source:    a.Channel,
		}); err != nil {
			return err
		}

		return s.ensureAuditOrder(ctx, tx, a, userID, now, expiresAt)
	})

	if errors.Is(err, xerrors.ErrConcurrencyConflict) {
		// The loser might be the same buyer double-clicking; resolve that to
		// an idempotent success instead of an error.
		if fresh, ferr := s.ds.Activations().FindByToken(ctx, token); ferr == nil && fresh.Status == activation.StatusActivated {
			return s.redeemedAlready(ctx, fresh, userID, userEmail, now)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("activation redeemed",
		zap.String("channel", a.Channel),
		zap.String("order_id", a.OrderID),
		zap.Int64("user_id", userID),
	)

	return &activation.RedemptionResult{
		Outcome:          activation.OutcomeActivated,
		PlanType:         a.PlanType,
		LicenseExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// redeemedAlready resolves a redeem call against an already-used link: the
// original buyer with an active license gets an idempotent success, anyone
// else a conflict with no state change.
func (s *Service) redeemedAlready(ctx context.Context, a *activation.LicenseActivation, userID int64, userEmail string, now time.Time) (*activation.RedemptionResult, error) {
	if strings.EqualFold(a.Email, userEmail) {
		lic, err := s.ds.Licenses().FindByUserID(ctx, userID)
		if err == nil && lic.IsActive(now) {
			return &activation.RedemptionResult{
				Outcome:          activation.OutcomeAlreadyActivated,
				PlanType:         a.PlanType,
				LicenseExpiresAt: lic.ExpiresAt.Format(time.RFC3339),
			}, nil
		}
	}
	return nil, xerrors.Wrap(xerrors.ErrConflict, "activation link was already used")
}

// entitlementEnd applies the tier rule at redemption time. Trial recomputes
// from now so first use always gets the full trial window; paid tiers keep
// the end precomputed at issuance.
func (s *Service) entitlementEnd(a *activation.LicenseActivation, now time.Time) (time.Time, error) {
	if a.PlanType == order.PlanTrial {
		return order.ExpiryForPlan(order.PlanTrial, now)
	}
	return a.LicenseExpiresAt, nil
}

// ensureAuditOrder records a paid Order for the channel purchase so refunds
// and bookkeeping see non-gateway revenue too. Runs inside the redemption
// transaction; the claim guard means it executes at most once per token.
func (s *Service) ensureAuditOrder(ctx context.Context, tx repository.Datastore, a *activation.LicenseActivation, userID int64, now time.Time, expiresAt time.Time) error {
	if _, err := tx.Orders().FindByExternalRef(ctx, a.Channel, a.OrderID); err == nil {
		return nil
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return err
	}

	o := &order.Order{
		OrderID:       auditOrderID(now),
		UserID:        userID,
		PlanType:      a.PlanType,
		Amount:        a.Amount,
		Currency:      "TWD",
		PaymentStatus: order.StatusPaid,
		Channel:       a.Channel,
		BuyerEmail:    a.Email,
		ExternalRef:   sql.NullString{String: a.OrderID, Valid: true},
		PaidAt:        sql.NullTime{Time: now, Valid: true},
		ExpiresAt:     sql.NullTime{Time: expiresAt, Valid: true},
	}

	return tx.Orders().Create(ctx, o)
}

func (s *Service) activationURL(token string) string {
	return fmt.Sprintf("%s?token=%s", s.baseURL, token)
}

// auditOrderID derives a gateway-length order id for channel purchases from
// a ULID: sortable by time, unique, and within the 20-character bound.
func auditOrderID(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	return "A" + id[7:]
}

// newToken returns 32 bytes of entropy as 64 hex characters.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("random source unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// validToken rejects anything that is not exactly 64 lowercase hex
// characters, before the token ever reaches a query.
func validToken(token string) bool {
	if len(token) != activation.TokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
