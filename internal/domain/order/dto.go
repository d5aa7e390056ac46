// internal/domain/order/dto.go
package order

type CreateOrderRequest struct {
	PlanType   PlanType `json:"plan_type" binding:"required"`
	BuyerName  string   `json:"buyer_name" binding:"required,max=100"`
	BuyerEmail string   `json:"buyer_email" binding:"required,email"`
}

type OrderResponse struct {
	OrderID       string        `json:"order_id"`
	PlanType      PlanType      `json:"plan_type"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentCode   string        `json:"payment_code,omitempty"`
	PaymentBank   string        `json:"payment_bank,omitempty"`
	InvoiceNumber string        `json:"invoice_number,omitempty"`
	PaidAt        string        `json:"paid_at,omitempty"`
	ExpiresAt     string        `json:"expires_at,omitempty"`
}

type RefundRequest struct {
	Amount *int64 `json:"amount" binding:"omitempty,min=1"`
	Reason string `json:"reason" binding:"max=255"`
}

type RefundResult struct {
	OrderID        string `json:"order_id"`
	RefundedAmount int64  `json:"refunded_amount"`
	InvoiceVoided  bool   `json:"invoice_voided"`
}
