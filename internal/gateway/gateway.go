// Package gateway talks to the external payment gateway: it creates payment
// intents and verifies the signed payment proofs the gateway hands to clients.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when no gateway credentials are set.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// Intent is a gateway-side order awaiting payment.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client creates payment intents with the gateway.
type Client interface {
	CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error)
}

// Config holds the gateway credentials and endpoint.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// HTTPClient is a Client for Razorpay-compatible order APIs.
type HTTPClient struct {
	cfg Config
}

// NewHTTPClient creates a new HTTPClient.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPClient{cfg: cfg}
}

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent registers amount (in minor units) with the gateway.
func (c *HTTPClient) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error) {
	if c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.cfg.BaseURL + "/orders").
		BasicAuth(c.cfg.KeyID, c.cfg.KeySecret).
		Timeout(timeout).
		JSON(createIntentRequest{Amount: amount, Currency: currency, Receipt: receipt})

	var intent Intent
	code, body, errs := agent.Struct(&intent)
	if code != 0 && (code < http.StatusOK || code >= http.StatusMultipleChoices) {
		var gwErr errorResponse
		if decodeErr := json.Unmarshal(body, &gwErr); decodeErr == nil && gwErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway rejected intent (%d %s): %s", code, gwErr.Error.Code, gwErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway rejected intent: status %d", code)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("gateway request failed: %w", errors.Join(errs...))
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("gateway returned an intent without an id")
	}
	if intent.Amount != amount {
		return nil, fmt.Errorf("gateway returned amount %d, requested %d", intent.Amount, amount)
	}
	return &intent, nil
}

// Sign computes the signature the gateway attaches to a successful payment:
// hex(HMAC-SHA256(orderID + "|" + paymentID, secret)).
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is valid for the order and
// payment ids. The comparison is constant time.
func VerifySignature(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, gatewayOrderID, paymentID))
	return hmac.Equal(got, want)
}

// ToMinorUnits converts a major-unit amount (rupees) to minor units (paise).
// It fails if the amount has sub-minor precision.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", amount)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts minor units back to a major-unit amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
