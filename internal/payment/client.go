// Package payment wraps the Stripe-style payment collaborator used to capture
// the winner's funds at settlement.  All calls carry an idempotency key: the
// provider deduplicates, so retrying a capture with the same key never
// double-charges.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/metrics"
)

// CaptureResult reports a completed capture.
type CaptureResult struct {
	ProviderRef string // the provider's payment-intent ID
	Amount      decimal.Decimal
}

// Client calls the payment provider over HTTPS.
type Client struct {
	baseURL   string
	secretKey string
	currency  string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient builds a payment client from config.
func NewClient(cfg config.PaymentConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		currency:  cfg.Currency,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// intentResponse is the subset of the provider's payment-intent body we need.
type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CaptureFunds charges the bidder the winning amount.  idemKey must be stable
// across retries of the same settlement; the provider returns the original
// result for a repeated key instead of charging again.
func (c *Client) CaptureFunds(ctx context.Context, bidderID uuid.UUID, amount decimal.Decimal, idemKey string) (*CaptureResult, error) {
	form := url.Values{}
	form.Set("amount", amount.Mul(decimal.NewFromInt(100)).StringFixed(0)) // minor units
	form.Set("currency", c.currency)
	form.Set("confirm", "true")
	form.Set("metadata[bidder_id]", bidderID.String())

	var result *CaptureResult
	err := retry.Do(
		func() error {
			res, err := c.post(ctx, "/v1/payment_intents", form, idemKey)
			if err != nil {
				return err
			}
			res.Amount = amount
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("payment").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}
	return result, nil
}

// RefundFunds returns a captured amount to the bidder, e.g. when a back-office
// operator voids a settlement after capture.  Keyed like captures.
func (c *Client) RefundFunds(ctx context.Context, providerRef string, idemKey string) error {
	form := url.Values{}
	form.Set("payment_intent", providerRef)

	err := retry.Do(
		func() error {
			_, err := c.post(ctx, "/v1/refunds", form, idemKey)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("payment").Inc()
		return fmt.Errorf("%w: refund: %v", domain.ErrPaymentFailed, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, idemKey string) (*CaptureResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", idemKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment: read response: %w", err)
	}

	var intent intentResponse
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("payment: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		msg := "unknown error"
		if intent.Error != nil {
			msg = intent.Error.Message
		}
		// Client errors are not retryable; wrap them unretryably.
		if resp.StatusCode < 500 {
			return nil, retry.Unrecoverable(fmt.Errorf("payment: provider rejected (status %d): %s", resp.StatusCode, msg))
		}
		return nil, fmt.Errorf("payment: provider error (status %d): %s", resp.StatusCode, msg)
	}

	if intent.Status != "succeeded" {
		return nil, retry.Unrecoverable(fmt.Errorf("payment: intent %s in status %q", intent.ID, intent.Status))
	}

	c.logger.Debug("payment captured", "intent", intent.ID)
	return &CaptureResult{ProviderRef: intent.ID}, nil
}
