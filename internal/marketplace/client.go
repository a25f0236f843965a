// Package marketplace is the HTTP client the booking widget uses to talk to
// the marketplace REST API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// SourceHeader identifies the calling client on every request.
	SourceHeader = "X-Widget-Source"
	SourceValue  = "petcare-booking-widget"

	maxErrorBody = 300
)

var ErrMissingAPIKey = errors.New("marketplace: missing api key")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to one marketplace base URL with one API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The default client has no
// timeout of its own; callers bound requests through the context.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListServices fetches the service catalog of a company. A response
// without a services field yields an empty list.
func (c *Client) ListServices(ctx context.Context, companyID string) ([]Service, error) {
	endpoint := fmt.Sprintf("%s/api/v1/marketplace/companies/%s/services", c.baseURL, url.PathEscape(companyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: create request: %w", err)
	}

	var out servicesResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Services == nil {
		return []Service{}, nil
	}
	return out.Services, nil
}

// CreateBooking posts a booking. The success payload is not inspected
// beyond the status code.
func (c *Client) CreateBooking(ctx context.Context, booking BookingRequest) error {
	body, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marketplace: marshal booking: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/bookings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("marketplace: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return ErrMissingAPIKey
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(SourceHeader, SourceValue)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("marketplace: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("marketplace: unmarshal response: %w", err)
	}
	return nil
}
