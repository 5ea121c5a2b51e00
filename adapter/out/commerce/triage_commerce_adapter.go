// Package commerce integrates the merchant's commerce platform: order lookup
// and the fulfillment operations the cancellation and address sagas drive.
package commerce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"triage_server/core/port/out"
)

const (
	lookupRetries = 2
	retryBackoff  = 500 * time.Millisecond
)

// Client talks to the commerce platform API. Implements out.CommerceLookup
// and out.FulfillmentService. Lookups are read-only and retried; fulfillment
// mutations are attempted once, the saga handles compensation.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg *Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger := log.With().Str("component", "commerce_client").Logger()
	cbSettings := gobreaker.Settings{
		Name:        "commerce-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		log:     logger,
	}
}

type orderResponse struct {
	OrderID        string     `json:"order_id"`
	Status         string     `json:"status"`
	TrackingNumber string     `json:"tracking_number"`
	Carrier        string     `json:"carrier"`
	TrackingURL    string     `json:"tracking_url"`
	Total          float64    `json:"total"`
	Currency       string     `json:"currency"`
	OrderedAt      time.Time  `json:"ordered_at"`
	EstimatedAt    *time.Time `json:"estimated_at"`
}

// LookupOrder fetches live order data. Read-only, so transient failures are
// retried before giving up.
func (c *Client) LookupOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*out.OrderInfo, error) {
	path := fmt.Sprintf("/v1/orders/%s", orderID)

	var body []byte
	var err error
	for attempt := 0; attempt <= lookupRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
		body, err = c.do(ctx, http.MethodGet, path, accountID, nil)
		if err == nil {
			break
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Str("order_id", orderID).
			Msg("order lookup failed")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order %s: %w", orderID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &out.OrderInfo{
		OrderID:        resp.OrderID,
		Status:         resp.Status,
		TrackingNumber: resp.TrackingNumber,
		Carrier:        resp.Carrier,
		TrackingURL:    resp.TrackingURL,
		Total:          resp.Total,
		Currency:       resp.Currency,
		OrderedAt:      resp.OrderedAt,
		EstimatedAt:    resp.EstimatedAt,
	}, nil
}

// HoldShipment reserves the order against further fulfillment steps.
func (c *Client) HoldShipment(ctx context.Context, accountID uuid.UUID, orderID string) error {
	return c.mutate(ctx, accountID, fmt.Sprintf("/v1/orders/%s/hold", orderID), nil)
}

// ReleaseShipment compensates a hold when the saga aborts.
func (c *Client) ReleaseShipment(ctx context.Context, accountID uuid.UUID, orderID string) error {
	return c.mutate(ctx, accountID, fmt.Sprintf("/v1/orders/%s/release", orderID), nil)
}

// CancelOrder finalizes a cancellation for a held order.
func (c *Client) CancelOrder(ctx context.Context, accountID uuid.UUID, orderID string) error {
	return c.mutate(ctx, accountID, fmt.Sprintf("/v1/orders/%s/cancel", orderID), nil)
}

// UpdateAddress rewrites the shipping address for a held order.
func (c *Client) UpdateAddress(ctx context.Context, accountID uuid.UUID, orderID, address string) error {
	payload := map[string]string{"address": address}
	return c.mutate(ctx, accountID, fmt.Sprintf("/v1/orders/%s/address", orderID), payload)
}

// mutate performs a fulfillment operation. Never retried: the saga's
// hold/compensate protocol owns failure handling.
func (c *Client) mutate(ctx context.Context, accountID uuid.UUID, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode fulfillment payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	if _, err := c.doReader(ctx, http.MethodPost, path, accountID, body); err != nil {
		return fmt.Errorf("fulfillment call %s failed: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, accountID uuid.UUID, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	return c.doReader(ctx, method, path, accountID, reader)
}

func (c *Client) doReader(ctx context.Context, method, path string, accountID uuid.UUID, body io.Reader) ([]byte, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-Account-ID", accountID.String())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("commerce API returned %d: %s", resp.StatusCode, string(data))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
