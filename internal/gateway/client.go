package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://api.razorpay.com/v1"
	DefaultTimeout = 10 * time.Second
	CurrencyINR    = "INR"
)

// Client talks to a Razorpay-compatible orders API.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
	client  *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewClient(keyID, secret string, client *http.Client, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		keyID:   keyID,
		secret:  secret,
		timeout: DefaultTimeout,
		client:  client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyID is the public key handed to the browser checkout.
func (c *Client) KeyID() string {
	return c.keyID
}

type OrderNotes struct {
	OrderNumber   string `json:"order_number"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type CreateOrderRequest struct {
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Notes    OrderNotes `json:"notes"`
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a payment intent with the gateway. The call is bounded by the
// client timeout in addition to ctx.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("decode gateway order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned an order without id")
	}

	return &order, nil
}
