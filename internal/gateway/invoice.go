// internal/gateway/invoice.go
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "settlement-service/internal/pkg/errors"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// InvoiceClient covers e-invoice issuance and voiding. Issuance is keyed by
// the order's relate number, so transport-level retries are safe.
type InvoiceClient interface {
	Issue(ctx context.Context, req *IssueInvoiceCall) (string, error)
	Void(ctx context.Context, invoiceNumber, reason string) error
}

type IssueInvoiceCall struct {
	RelateNumber string // order_id; makes issuance idempotent gateway-side
	BuyerName    string
	BuyerEmail   string
	Amount       int64
	ItemName     string
}

type invoiceClient struct {
	cfg        Config
	codec      *Codec
	httpClient *retryablehttp.Client
	logger     *zap.Logger
}

func NewInvoiceClient(cfg Config, logger *zap.Logger) InvoiceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &invoiceClient{
		cfg:        cfg,
		codec:      NewCodec(cfg.HashKey, cfg.HashIV),
		httpClient: rc,
		logger:     logger,
	}
}

// Issue requests an e-invoice for a settled order and returns the invoice
// number assigned by the gateway.
func (c *invoiceClient) Issue(ctx context.Context, req *IssueInvoiceCall) (string, error) {
	params := map[string]string{
		"MerchantID":    c.cfg.MerchantID,
		"RelateNumber":  req.RelateNumber,
		"CustomerName":  req.BuyerName,
		"CustomerEmail": req.BuyerEmail,
		"SalesAmount":   strconv.FormatInt(req.Amount, 10),
		"ItemName":      req.ItemName,
		"InvType":       "07",
	}

	values, err := c.postSigned(ctx, c.cfg.InvoiceURL+"/Issue", params)
	if err != nil {
		return "", err
	}

	if values.Get("RtnCode") != RtnCodeSuccess {
		return "", xerrors.Wrap(xerrors.ErrUpstreamGateway,
			fmt.Sprintf("invoice issuance rejected: %s (%s)", values.Get("RtnMsg"), values.Get("RtnCode")))
	}

	invoiceNumber := values.Get("InvoiceNumber")
	if invoiceNumber == "" {
		return "", xerrors.Wrap(xerrors.ErrUpstreamGateway, "invoice response missing invoice number")
	}

	return invoiceNumber, nil
}

// Void cancels an issued invoice ahead of a refund.
func (c *invoiceClient) Void(ctx context.Context, invoiceNumber, reason string) error {
	if reason == "" {
		reason = "order refunded"
	}

	params := map[string]string{
		"MerchantID":    c.cfg.MerchantID,
		"InvoiceNumber": invoiceNumber,
		"Reason":        reason,
	}

	values, err := c.postSigned(ctx, c.cfg.InvoiceURL+"/Void", params)
	if err != nil {
		return err
	}

	if values.Get("RtnCode") != RtnCodeSuccess {
		return xerrors.Wrap(xerrors.ErrUpstreamGateway,
			fmt.Sprintf("invoice void rejected: %s (%s)", values.Get("RtnMsg"), values.Get("RtnCode")))
	}

	return nil
}

func (c *invoiceClient) postSigned(ctx context.Context, endpoint string, params map[string]string) (url.Values, error) {
	mac, err := c.codec.Sign(params)
	if err != nil {
		return nil, err
	}
	params[MACField] = mac

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamGateway, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamGateway, "failed to read invoice response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamGateway,
			fmt.Sprintf("invoice endpoint returned status %d", resp.StatusCode))
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamGateway, "unparseable invoice response")
	}

	return values, nil
}
