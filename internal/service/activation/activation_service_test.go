// internal/service/activation/activation_service_test.go
package activation

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	domain "settlement-service/internal/domain/activation"
	"settlement-service/internal/domain/order"
	"settlement-service/internal/gateway"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var issuedAt = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // recipient addresses
	fail bool
}

func (m *fakeMailer) SendActivationLink(to, activationURL string, linkExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return assert.AnError
	}
	m.sent = append(m.sent, to)
	return nil
}

func newTestService(t *testing.T) (*Service, *memory.Store, *fakeMailer) {
	t.Helper()
	store := memory.NewStore()
	mailer := &fakeMailer{}
	svc := NewService(store, map[string]*gateway.Codec{
		"reseller": gateway.NewCodec("reseller-key", "reseller-iv"),
	}, mailer, "https://app.example.com/activate", zap.NewNop())
	svc.now = func() time.Time { return issuedAt }
	return svc, store, mailer
}

// signedIssue builds a partner webhook request with a valid channel signature.
func signedIssue(t *testing.T, channel, orderID, email string, plan order.PlanType, amount int64) *domain.IssueRequest {
	t.Helper()
	codec := gateway.NewCodec(channel+"-key", channel+"-iv")
	mac, err := codec.Sign(map[string]string{
		"channel":   channel,
		"order_id":  orderID,
		"email":     email,
		"plan_type": string(plan),
		"amount":    strconv.FormatInt(amount, 10),
	})
	require.NoError(t, err)

	return &domain.IssueRequest{
		Channel:   channel,
		OrderID:   orderID,
		Email:     email,
		PlanType:  plan,
		Amount:    amount,
		Signature: mac,
	}
}

func TestIssue_CreatesPendingActivationAndMailsLink(t *testing.T) {
	svc, store, mailer := newTestService(t)
	ctx := context.Background()

	a, activationURL, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "Buyer@Example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, "buyer@example.com", a.Email, "email is stored lowercased")
	assert.Len(t, a.ActivationToken, domain.TokenLength)
	assert.True(t, issuedAt.Add(domain.LinkValidity).Equal(a.LinkExpiresAt))
	assert.True(t, strings.HasPrefix(activationURL, "https://app.example.com/activate?token="))
	assert.Equal(t, []string{"buyer@example.com"}, mailer.sent)

	persisted, err := store.Activations().FindByToken(ctx, a.ActivationToken)
	require.NoError(t, err)
	assert.Equal(t, "RS-1001", persisted.OrderID)
}

func TestIssue_RedeliveryReturnsExistingToken(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	second, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	assert.Equal(t, first.ActivationToken, second.ActivationToken)
	assert.Len(t, mailer.sent, 1, "redelivery must not mail a second link")
}

func TestIssue_RejectsBadSignature(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900)
	req.Signature = strings.Repeat("0", 64)

	_, _, err := svc.Issue(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrSignature)
}

func TestIssue_RejectsUnknownChannel(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900)
	req.Channel = "unknown-shop"

	_, _, err := svc.Issue(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestIssue_MailFailureDoesNotLoseActivation(t *testing.T) {
	svc, store, mailer := newTestService(t)
	mailer.fail = true

	a, _, err := svc.Issue(context.Background(), signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err, "mail delivery is best-effort, the row must exist for a resend")

	_, err = store.Activations().FindByToken(context.Background(), a.ActivationToken)
	assert.NoError(t, err)
}

func TestRedeem_GrantsLicenseAndRecordsAuditOrder(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	result, err := svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeActivated, result.Outcome)

	lic, err := store.Licenses().FindByUserID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, string(order.PlanYearly), lic.Tier)
	assert.Equal(t, "reseller", lic.Source)
	assert.True(t, issuedAt.AddDate(0, 0, 365).Equal(lic.ExpiresAt))

	audit, err := store.Orders().FindByExternalRef(ctx, "reseller", "RS-1001")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, audit.PaymentStatus)
	assert.Equal(t, int64(6900), audit.Amount)
	assert.LessOrEqual(t, len(audit.OrderID), order.MaxOrderIDLength)

	claimed, err := store.Activations().FindByToken(ctx, a.ActivationToken)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActivated, claimed.Status)
	assert.Equal(t, int64(42), claimed.ActivatedByUserID.Int64)
}

func TestRedeem_TrialWindowStartsAtRedemption(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-2001", "buyer@example.com", order.PlanTrial, 0))
	require.NoError(t, err)

	// The buyer sits on the mail for three days before clicking.
	redeemedAt := issuedAt.AddDate(0, 0, 3)
	svc.now = func() time.Time { return redeemedAt }

	_, err = svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	require.NoError(t, err)

	lic, err := store.Licenses().FindByUserID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, redeemedAt.AddDate(0, 0, 14).Equal(lic.ExpiresAt),
		"trial runs its full window from first use, not from issuance")
}

func TestRedeem_MalformedToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "too_short", token: "abc123"},
		{name: "uppercase_hex", token: strings.Repeat("A", 64)},
		{name: "non_hex", token: strings.Repeat("z", 64)},
		{name: "sql_ish", token: "' OR 1=1 --" + strings.Repeat("a", 53)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Redeem(ctx, tt.token, 42, "buyer@example.com")
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		})
	}
}

func TestRedeem_UnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Redeem(context.Background(), strings.Repeat("a", 64), 42, "buyer@example.com")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRedeem_ExpiredLinkBoundaryIsClosed(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	// Exactly at link_expires_at the link no longer works.
	svc.now = func() time.Time { return a.LinkExpiresAt }

	_, err = svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	assert.ErrorIs(t, err, xerrors.ErrExpired)

	got, err := store.Activations().FindByToken(ctx, a.ActivationToken)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	_, err = store.Licenses().FindByUserID(ctx, 42)
	assert.Error(t, err, "an expired link must never grant a license")
}

func TestRedeem_JustBeforeExpiryStillWorks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	svc.now = func() time.Time { return a.LinkExpiresAt.Add(-time.Second) }

	result, err := svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeActivated, result.Outcome)
}

func TestRedeem_SameBuyerReclickIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	require.NoError(t, err)

	result, err := svc.Redeem(ctx, a.ActivationToken, 42, "Buyer@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyActivated, result.Outcome)
}

func TestRedeem_OtherUserOnUsedLinkConflicts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, a.ActivationToken, 42, "buyer@example.com")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, a.ActivationToken, 7, "someone-else@example.com")
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	_, err = store.Licenses().FindByUserID(ctx, 7)
	assert.Error(t, err, "the second account must not gain a license")
}

func TestRedeem_ConcurrentRequestsActivateExactlyOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.Issue(ctx, signedIssue(t, "reseller", "RS-1001", "buyer@example.com", order.PlanYearly, 6900))
	require.NoError(t, err)

	const workers = 16
	results := make([]domain.RedemptionOutcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			userID := int64(100 + i)
			res, err := svc.Redeem(ctx, a.ActivationToken, userID, "user"+strconv.Itoa(i)+"@example.com")
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	activated := 0
	for i := 0; i < workers; i++ {
		if results[i] == domain.OutcomeActivated {
			activated++
			continue
		}
		require.Error(t, errs[i], "worker %d neither won nor failed", i)
	}
	assert.Equal(t, 1, activated, "exactly one concurrent redemption may win")

	// Exactly one license and one audit order came out of the stampede.
	licensed := 0
	for i := 0; i < workers; i++ {
		if _, err := store.Licenses().FindByUserID(ctx, int64(100+i)); err == nil {
			licensed++
		}
	}
	assert.Equal(t, 1, licensed)

	_, err = store.Orders().FindByExternalRef(ctx, "reseller", "RS-1001")
	assert.NoError(t, err)
}
