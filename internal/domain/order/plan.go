// internal/domain/order/plan.go
package order

import (
	"fmt"
	"time"

	xerrors "settlement-service/internal/pkg/errors"
)

// planPricing is the server-side price list in the smallest currency unit.
// Amounts are never trusted from the client. Trial is absent on purpose: it
// is only granted through partner-channel activations.
var planPricing = map[PlanType]int64{
	PlanMonthly:  880,
	PlanYearly:   8280,
	PlanTwoYear:  14800,
	PlanLifetime: 29800,
}

// PriceFor returns the server-side price of a plan.
func PriceFor(p PlanType) (int64, bool) {
	amount, ok := planPricing[p]
	return amount, ok
}

// Entitlement durations per tier. Trial recalculates from the moment of
// activation rather than issuance, so a trial always grants its full window
// from first use; everything else computes from payment time.
const (
	monthlyDays = 30
	yearlyDays  = 365
	twoYearDays = 730
	trialDays   = 14
)

// ExpiryForPlan computes the subscription end granted by a purchase of plan
// p starting at from. An unknown tier is a configuration fault, never
// silently defaulted to a paid tier.
func ExpiryForPlan(p PlanType, from time.Time) (time.Time, error) {
	switch p {
	case PlanLifetime:
		return LifetimeSentinel, nil
	case PlanTwoYear:
		return from.AddDate(0, 0, twoYearDays), nil
	case PlanYearly:
		return from.AddDate(0, 0, yearlyDays), nil
	case PlanMonthly:
		return from.AddDate(0, 0, monthlyDays), nil
	case PlanTrial:
		return from.AddDate(0, 0, trialDays), nil
	}
	return time.Time{}, xerrors.Wrap(xerrors.ErrConfiguration, fmt.Sprintf("unknown plan type %q", p))
}
