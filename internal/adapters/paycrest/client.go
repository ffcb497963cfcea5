package paycrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
	"github.com/NEDA-LABS/nedapay-service/pkg/metrics"
	"github.com/NEDA-LABS/nedapay-service/pkg/retry"
)

// Config represents processor API configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the payment processor: rate quotes, eligibility lists,
// account verification and settlement orders.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
}

// NewClient creates a new processor API client.
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.paycrest.io"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	st := gobreaker.Settings{
		Name:        "paycrest",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(st),
		logger:     logger,
	}
}

// FetchRate quotes the token→fiat conversion rate for the given amount on
// the given network. Quotes are always fetched fresh; nothing here caches.
func (c *Client) FetchRate(ctx context.Context, token entities.Token, amount decimal.Decimal, fiat, network string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate quote requires a positive amount, got %s", amount)
	}

	endpoint := fmt.Sprintf("/v1/rates/%s/%s/%s?network=%s",
		url.PathEscape(string(token)), url.PathEscape(amount.String()), url.PathEscape(fiat), url.QueryEscape(network))

	var raw json.RawMessage
	if err := c.get(ctx, "rates", endpoint, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("rate fetch failed: %w", err)
	}

	var rateStr string
	if err := json.Unmarshal(raw, &rateStr); err != nil {
		return decimal.Zero, fmt.Errorf("rate fetch failed: unexpected payload: %w", err)
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate fetch failed: malformed rate %q: %w", rateStr, err)
	}
	return rate, nil
}

// SupportedCurrencies lists the fiat currencies the processor settles into.
func (c *Client) SupportedCurrencies(ctx context.Context) ([]entities.Currency, error) {
	var payload []currencyPayload
	if err := c.get(ctx, "currencies", "/v1/currencies", &payload); err != nil {
		return nil, fmt.Errorf("list currencies failed: %w", err)
	}
	currencies := make([]entities.Currency, 0, len(payload))
	for _, p := range payload {
		currencies = append(currencies, p.toEntity())
	}
	return currencies, nil
}

// SupportedInstitutions lists settlement institutions for a fiat currency.
// Jurisdiction filters are applied by the caller, not here.
func (c *Client) SupportedInstitutions(ctx context.Context, fiat string) ([]entities.Institution, error) {
	var payload []institutionPayload
	if err := c.get(ctx, "institutions", "/v1/institutions/"+url.PathEscape(fiat), &payload); err != nil {
		return nil, fmt.Errorf("list institutions failed: %w", err)
	}
	institutions := make([]entities.Institution, 0, len(payload))
	for _, p := range payload {
		institutions = append(institutions, p.toEntity())
	}
	return institutions, nil
}

// VerifyAccount resolves a settlement destination and returns the account
// holder's display name.
func (c *Client) VerifyAccount(ctx context.Context, institutionCode, accountIdentifier string) (string, error) {
	req := verifyAccountRequest{Institution: institutionCode, AccountIdentifier: accountIdentifier}

	var raw json.RawMessage
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "verify-account", "/v1/verify-account", req, &raw); err != nil {
		return "", fmt.Errorf("account verification failed: %w", err)
	}

	var accountName string
	if err := json.Unmarshal(raw, &accountName); err != nil {
		return "", fmt.Errorf("account verification failed: unexpected payload: %w", err)
	}
	return accountName, nil
}

// CreateOrder opens a settlement order. Never retried: a duplicate order
// would double-settle, so transient failures surface to the caller.
func (c *Client) CreateOrder(ctx context.Context, req *entities.OrderRequest) (*entities.SettlementOrder, error) {
	body := orderRequest{
		Amount:        req.Amount,
		Rate:          req.Rate,
		Network:       req.Network,
		Token:         string(req.Token),
		ReturnAddress: req.ReturnAddress,
		Reference:     req.Reference,
		Recipient: orderRecipientFields{
			Institution:       req.Recipient.Institution,
			AccountIdentifier: req.Recipient.AccountIdentifier,
			AccountName:       req.Recipient.AccountName,
			Memo:              req.Recipient.Memo,
		},
	}

	var payload orderPayload
	if err := c.doRequest(ctx, http.MethodPost, "orders", "/v1/sender/orders", body, &payload); err != nil {
		return nil, fmt.Errorf("create order failed: %w", err)
	}
	return payload.toEntity(), nil
}

func (c *Client) get(ctx context.Context, name, endpoint string, out interface{}) error {
	return c.doRequestWithRetry(ctx, http.MethodGet, name, endpoint, nil, out)
}

// doRequest performs one HTTP round trip through the circuit breaker and
// unwraps the processor's response envelope into out.
func (c *Client) doRequest(ctx context.Context, method, name, endpoint string, body, out interface{}) error {
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.ProcessorRequestDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, endpoint, body, out)
	})
	if err != nil {
		status = "error"
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body, out interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("API-Key", c.config.APIKey)
	}

	c.logger.Debug("Sending processor request", "method", method, "url", fullURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("Received processor response", "status_code", resp.StatusCode, "body_size", len(respBody))

	if resp.StatusCode >= 400 {
		var env envelope
		if err := json.Unmarshal(respBody, &env); err == nil && env.Message != "" {
			return &ErrorResponse{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message}
		}
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequestWithRetry retries idempotent calls on transient failures. Order
// creation must never go through here.
func (c *Client) doRequestWithRetry(ctx context.Context, method, name, endpoint string, body, out interface{}) error {
	retryConfig := retry.RetryConfig{
		MaxAttempts: c.config.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}

	isRetryable := func(err error) bool {
		if err == nil {
			return false
		}
		if apiErr, ok := err.(*ErrorResponse); ok {
			return apiErr.IsServerError() || apiErr.IsRateLimited()
		}
		errStr := err.Error()
		return strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "status 5")
	}

	return retry.WithExponentialBackoff(ctx, retryConfig, func() error {
		return c.doRequest(ctx, method, name, endpoint, body, out)
	}, isRetryable)
}
