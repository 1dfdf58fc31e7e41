// Package client talks to a remote checkout backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"propflow/internal/common/middleware"
	"propflow/internal/payment"
	"propflow/internal/purchase"
)

// Config holds checkout backend client configuration
type Config struct {
	BaseURL string        `envconfig:"PURCHASE_BACKEND_URL"`
	Timeout time.Duration `envconfig:"PURCHASE_BACKEND_TIMEOUT" default:"0s"` // zero disables the timeout
}

// Client implements purchase.Backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ purchase.Backend = (*Client)(nil)

// New creates a new checkout backend client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s returned status %d", e.Path, e.StatusCode)
}

// CreatePaymentIntent calls POST /payments/create-intent
func (c *Client) CreatePaymentIntent(ctx context.Context, req *payment.IntentRequest) (*payment.IntentResponse, error) {
	var resp payment.IntentResponse
	if err := c.post(ctx, "/payments/create-intent", req, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentIntent.ID == "" {
		return nil, fmt.Errorf("create payment intent: response carries no intent id")
	}
	return &resp, nil
}

// CreateReservation calls POST /reservations
func (c *Client) CreateReservation(ctx context.Context, req *payment.ReservationRequest) (*payment.ReservationResponse, error) {
	var resp payment.ReservationResponse
	if err := c.post(ctx, "/reservations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmPayment calls POST /payments/confirm
func (c *Client) ConfirmPayment(ctx context.Context, req *payment.ConfirmRequest) (*payment.ConfirmResponse, error) {
	var resp payment.ConfirmResponse
	if err := c.post(ctx, "/payments/confirm", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// envelope mirrors the common API response wrapper
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := middleware.GetCorrelationID(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("checkout backend call",
		"path", path,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if httpResp.StatusCode >= 400 {
		statusErr := &StatusError{Path: path, StatusCode: httpResp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			statusErr.Message = env.Error.Message
		}
		return statusErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
