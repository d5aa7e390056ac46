// internal/gateway/client.go
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

	"go.uber.org/zap"
)

// RefundClient covers the gateway credit-action endpoint. Behind an
// interface so the refund coordinator is testable with a fake.
type RefundClient interface {
	Refund(ctx context.Context, req *RefundCall) (*RefundCallResult, error)
}

type RefundCall struct {
	MerchantTradeNo string
	GatewayTradeNo  string
	Amount          int64
}

type RefundCallResult struct {
	RtnCode string
	RtnMsg  string
}

// Config carries the merchant credentials and endpoints for outbound
// gateway calls.
type Config struct {
	MerchantID  string
	HashKey     string
	HashIV      string
	CheckoutURL string
	ActionURL   string
	InvoiceURL  string
	Timeout     time.Duration
}

// Client talks to the payment gateway's action API. Every call carries a
// bounded timeout; on timeout the caller leaves local state unchanged.
type Client struct {
	cfg        Config
	codec      *Codec
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:   cfg,
		codec: NewCodec(cfg.HashKey, cfg.HashIV),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Codec exposes the client's signature codec for checkout payload signing.
func (c *Client) Codec() *Codec {
	return c.codec
}

// Refund asks the gateway to return funds for a settled trade. A non-2xx
// response, a transport error or a non-success RtnCode all surface as
// xerrors.ErrUpstreamGateway; the refund is never assumed to have succeeded.
func (c *Client) Refund(ctx context.Context, req *RefundCall) (*RefundCallResult, error) {
	params := map[string]string{
		"MerchantID":      c.cfg.MerchantID,
		"MerchantTradeNo": req.MerchantTradeNo,
		"TradeNo":         req.GatewayTradeNo,
		"Action":          "R",
		"TotalAmount":     strconv.FormatInt(req.Amount, 10),
	}

	mac, err := c.codec.Sign(params)
	if err != nil {
		return nil, err
	}
	params[MACField] = mac

	body, err := c.postForm(ctx, c.cfg.ActionURL, params)
	if err != nil {
		return nil, err
	}

	result := parseActionResponse(body)
	if result.RtnCode != RtnCodeSuccess {
		c.logger.Warn("gateway rejected refund",
			zap.String("merchant_trade_no", req.MerchantTradeNo),
			zap.String("rtn_code", result.RtnCode),
			zap.String("rtn_msg", result.RtnMsg),
		)
		return result, xerrors.Wrap(xerrors.ErrUpstreamGateway,
			fmt.Sprintf("refund rejected: %s (%s)", result.RtnMsg, result.RtnCode))
	}

	return result, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, params map[string]string) (string, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", xerrors.Wrap(xerrors.ErrUpstreamGateway, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xerrors.Wrap(xerrors.ErrUpstreamGateway, "failed to read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", xerrors.Wrap(xerrors.ErrUpstreamGateway,
			fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}

	return string(body), nil
}

// parseActionResponse decodes the gateway's k=v&k=v action response body.
func parseActionResponse(body string) *RefundCallResult {
	values, err := url.ParseQuery(body)
	if err != nil {
		return &RefundCallResult{RtnMsg: body}
	}
	return &RefundCallResult{
		RtnCode: values.Get("RtnCode"),
		RtnMsg:  values.Get("RtnMsg"),
	}
}
