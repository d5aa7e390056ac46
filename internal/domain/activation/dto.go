// internal/domain/activation/dto.go
package activation

import "settlement-service/internal/domain/order"

type IssueRequest struct {
	Channel  string         `json:"channel" binding:"required,max=50"`
	OrderID  string         `json:"order_id" binding:"required,max=100"`
	Email    string         `json:"email" binding:"required,email"`
	PlanType order.PlanType `json:"plan_type" binding:"required"`
	Amount   int64          `json:"amount" binding:"min=0"`
	// Signature authenticates the partner channel (HMAC over the
	// form-encoded fields, same scheme as gateway callbacks).
	Signature string `json:"signature" binding:"required"`
}

type IssueResponse struct {
	Channel       string `json:"channel"`
	OrderID       string `json:"order_id"`
	ActivationURL string `json:"activation_url"`
	LinkExpiresAt string `json:"link_expires_at"`
}

// RedemptionOutcome distinguishes a fresh redemption from an idempotent
// re-click on an already used link.
type RedemptionOutcome string

const (
	OutcomeActivated        RedemptionOutcome = "activated"
	OutcomeAlreadyActivated RedemptionOutcome = "already_activated"
)

type RedemptionResult struct {
	Outcome          RedemptionOutcome `json:"outcome"`
	PlanType         order.PlanType    `json:"plan_type"`
	LicenseExpiresAt string            `json:"license_expires_at"`
}
