// Package zestimate provides automated valuation lookups through the
// Zillow bridge API.
package zestimate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the bridge zestimates API.
const defaultBaseURL = "https://api.bridgedataoutput.com/api/v2"

// Client defines the valuation lookup used to seed CMA price ranges.
type Client interface {
	GetValuation(ctx context.Context, address string) (*Valuation, error)
}

// Valuation is an automated estimate with its confidence band.
type Valuation struct {
	Address   string `json:"address"`
	Zestimate int64  `json:"zestimate"`
	Low       int64  `json:"lowPercent,omitempty"`
	High      int64  `json:"highPercent,omitempty"`
	RentalZ   int64  `json:"rentalZestimate,omitempty"`
}

// APIError is returned when the bridge API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zestimate: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new valuation client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetValuation looks up the estimate for a full street address. A missing
// valuation returns nil, not an error; callers fall back to their own
// estimate.
func (c *httpClient) GetValuation(ctx context.Context, address string) (*Valuation, error) {
	u := fmt.Sprintf("%s/zestimates?access_token=%s&address=%s",
		c.baseURL, url.QueryEscape(c.token), url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "zestimate: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zestimate: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zestimate: read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var envelope struct {
		Bundle []Valuation `json:"bundle"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, eris.Wrap(err, "zestimate: decode response")
	}
	if len(envelope.Bundle) == 0 {
		return nil, nil
	}
	return &envelope.Bundle[0], nil
}
