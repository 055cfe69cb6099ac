package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrGatewayNotConfigured is returned when no key id/secret is set.
var ErrGatewayNotConfigured = errors.New("payment gateway not configured")

// GatewayOrder is the gateway's view of an order awaiting payment.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayError carries a non-2xx gateway response.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// Client creates orders on a Razorpay-compatible API.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	lg        *zap.Logger
}

func NewClient(baseURL, keyID, keySecret string, lg *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: 10 * time.Second},
		lg:        lg.Named("gateway"),
	}
}

// KeyID is the public key the browser checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateOrder registers amount (in minor units) with the gateway.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string) (*GatewayOrder, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrGatewayNotConfigured
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	payload, err := json.Marshal(createOrderBody{
		Amount:   amount,
		Currency: currency,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.lg.Warn("Gateway rejected order", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var order GatewayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, errors.Wrap(err, "decode gateway order")
	}

	c.lg.Info("Gateway order created",
		zap.String("gateway_order_id", order.ID),
		zap.Int64("amount", order.Amount),
		zap.String("currency", order.Currency),
	)
	return &order, nil
}
