// Package cloudcma provides API access to the Cloud CMA report service.
package cloudcma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Cloud CMA API.
const defaultBaseURL = "https://cloudcma.com/api/v1"

// Client defines the Cloud CMA operations used by the CMA generator.
type Client interface {
	RequestReport(ctx context.Context, req ReportRequest) (*ReportResponse, error)
	GetReport(ctx context.Context, id string) (*Report, error)
}

// ReportRequest is the body for POST /cmas. WebhookURL receives the
// completion callback; the correlation token is threaded through it as a
// query parameter so the webhook can be matched back to the request.
type ReportRequest struct {
	AgentEmail   string  `json:"agent_email"`
	Address      string  `json:"address"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Zip          string  `json:"zip,omitempty"`
	CenterPrice  int64   `json:"center_price,omitempty"`
	SearchRadius float64 `json:"search_radius,omitempty"` // miles
	MonthsBack   int     `json:"months_back,omitempty"`
	CompCount    int     `json:"comp_count,omitempty"`
	WebhookURL   string  `json:"webhook_url,omitempty"`
}

// ReportResponse is the immediate, provisional response to a report
// request. Authoritative URLs arrive later via webhook.
type ReportResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	EditURL string `json:"edit_url,omitempty"`
}

// Report is a previously generated report.
type Report struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Address   string    `json:"address"`
	EditURL   string    `json:"edit_url,omitempty"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	ViewCount int       `json:"view_count,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// WebhookPayload is the body Cloud CMA posts when a report finishes.
type WebhookPayload struct {
	ID        string     `json:"id"`
	Action    string     `json:"action"` // created, updated, destroyed
	Title     string     `json:"title,omitempty"`
	EditURL   string     `json:"editUrl,omitempty"`
	PDFURL    string     `json:"pdfUrl,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// APIError is returned when Cloud CMA responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudcma: HTTP %d: %s", e.StatusCode, e.Body)
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Cloud CMA client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) RequestReport(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	var resp ReportResponse
	if err := c.post(ctx, "/cmas", req, &resp); err != nil {
		return nil, eris.Wrap(err, "cloudcma: request report")
	}
	return &resp, nil
}

func (c *httpClient) GetReport(ctx context.Context, id string) (*Report, error) {
	var resp Report
	if err := c.get(ctx, "/cmas/"+id, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("cloudcma: get report %s", id))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	q := req.URL.Query()
	q.Set("api_key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
