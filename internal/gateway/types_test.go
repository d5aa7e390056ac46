// internal/gateway/types_test.go
package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCallback(t *testing.T) {
	values := url.Values{}
	values.Set("MerchantID", "3002607")
	values.Set("MerchantTradeNo", "S260102120000ABCDEFG")
	values.Set("TradeNo", "2601021234567890")
	values.Set("RtnCode", "1")
	values.Set("RtnMsg", "Succeeded")
	values.Set("TradeAmt", "8280")
	values.Set("PaymentDate", "2026/01/02 12:34:56")
	values.Set("PaymentType", "Credit_CreditCard")
	values.Set("CheckMacValue", "ABCDEF")

	cb := ParseCallback(values)

	assert.Equal(t, "S260102120000ABCDEFG", cb.MerchantTradeNo)
	assert.Equal(t, "2601021234567890", cb.TradeNo)
	assert.Equal(t, int64(8280), cb.TradeAmt)
	assert.True(t, cb.IsSuccess())
	assert.False(t, cb.IsCodeIssuance())
	assert.Equal(t, "ABCDEF", cb.Raw["CheckMacValue"])
}

func TestCallbackClassification(t *testing.T) {
	tests := []struct {
		name         string
		rtnCode      string
		success      bool
		codeIssuance bool
	}{
		{name: "settled", rtnCode: RtnCodeSuccess, success: true},
		{name: "atm_account_issued", rtnCode: RtnCodeATMIssued, codeIssuance: true},
		{name: "cvs_code_issued", rtnCode: RtnCodeCVSIssued, codeIssuance: true},
		{name: "barcode_issued", rtnCode: RtnCodeBarcodeWait, codeIssuance: true},
		{name: "card_declined", rtnCode: "10100252"},
		{name: "empty", rtnCode: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &Callback{RtnCode: tt.rtnCode}
			assert.Equal(t, tt.success, cb.IsSuccess())
			assert.Equal(t, tt.codeIssuance, cb.IsCodeIssuance())
		})
	}
}

func TestCallbackEncode_PreservesRawFields(t *testing.T) {
	values := url.Values{}
	values.Set("MerchantTradeNo", "S260102120000ABCDEFG")
	values.Set("vAccount", "9103522175887271")
	values.Set("BankCode", "812")

	cb := ParseCallback(values)
	encoded := cb.Encode()

	assert.Equal(t, "9103522175887271", encoded.Get("vAccount"))
	assert.Equal(t, "812", encoded.Get("BankCode"))
	assert.Equal(t, "9103522175887271", cb.VAccount)
}
