// internal/gateway/types.go
package gateway

import (
	"net/url"
	"strconv"
)

// Callback result codes. Anything other than these is a business failure.
const (
	RtnCodeSuccess     = "1"        // payment settled
	RtnCodeATMIssued   = "2"        // ATM virtual account issued, still pending
	RtnCodeCVSIssued   = "10100073" // convenience-store / barcode code issued
	RtnCodeBarcodeWait = "10100058" // barcode generated, awaiting payment
)

// Payment-method families reported by the gateway.
const (
	MethodCredit  = "Credit"
	MethodATM     = "ATM"
	MethodCVS     = "CVS"
	MethodBarcode = "BARCODE"
)

// Webhook ack bodies. The gateway parses these literally and retries the
// callback on anything else, so they must be preserved bit-for-bit.
const (
	AckSuccess = "1|OK"
	AckFailure = "0|FAIL"
)

// Callback is one inbound gateway notification, decoded from the
// form-encoded POST body.
type Callback struct {
	MerchantID      string
	MerchantTradeNo string
	TradeNo         string
	RtnCode         string
	RtnMsg          string
	TradeAmt        int64
	PaymentDate     string
	PaymentType     string

	// Offline issuance fields (ATM / CVS / barcode first callback)
	BankCode   string
	VAccount   string
	PaymentNo  string
	ExpireDate string

	// Raw holds every field as delivered, for signature verification and
	// audit storage.
	Raw map[string]string
}

// ParseCallback decodes a callback from its form values. Values must come
// from the request body decoded with the gateway's own character encoding;
// re-encoding breaks signature verification.
func ParseCallback(values url.Values) *Callback {
	raw := make(map[string]string, len(values))
	for k := range values {
		raw[k] = values.Get(k)
	}

	amt, _ := strconv.ParseInt(raw["TradeAmt"], 10, 64)

	return &Callback{
		MerchantID:      raw["MerchantID"],
		MerchantTradeNo: raw["MerchantTradeNo"],
		TradeNo:         raw["TradeNo"],
		RtnCode:         raw["RtnCode"],
		RtnMsg:          raw["RtnMsg"],
		TradeAmt:        amt,
		PaymentDate:     raw["PaymentDate"],
		PaymentType:     raw["PaymentType"],
		BankCode:        raw["BankCode"],
		VAccount:        raw["vAccount"],
		PaymentNo:       raw["PaymentNo"],
		ExpireDate:      raw["ExpireDate"],
		Raw:             raw,
	}
}

// IsCodeIssuance reports whether this callback is the first leg of a
// two-phase offline payment: a code was issued but nothing is settled yet.
func (cb *Callback) IsCodeIssuance() bool {
	switch cb.RtnCode {
	case RtnCodeATMIssued, RtnCodeCVSIssued, RtnCodeBarcodeWait:
		return true
	}
	return false
}

// IsSuccess reports whether this callback settles the trade.
func (cb *Callback) IsSuccess() bool {
	return cb.RtnCode == RtnCodeSuccess
}

// Encode rebuilds the raw field set as url.Values (signature included).
func (cb *Callback) Encode() url.Values {
	values := url.Values{}
	for k, v := range cb.Raw {
		values.Set(k, v)
	}
	return values
}

// CheckoutPayload is everything the browser needs to auto-submit a form to
// the gateway's hosted checkout page, MAC included.
type CheckoutPayload struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}
