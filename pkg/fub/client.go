// Package fub provides REST API access to the Follow Up Boss CRM.
package fub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the Follow Up Boss v1 API.
const defaultBaseURL = "https://api.followupboss.com/v1"

// Client defines the Follow Up Boss operations used by the intelligence
// pipeline.
type Client interface {
	GetPerson(ctx context.Context, id string) (*Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*Person, error)
	UpdatePerson(ctx context.Context, id string, fields map[string]any) error
	CreateNote(ctx context.Context, note Note) (*Note, error)
	CreateTask(ctx context.Context, task Task) (*Task, error)
}

// Person is a Follow Up Boss contact. Custom holds the account's custom
// fields keyed by API name (e.g. customWillowScore).
type Person struct {
	ID        json.Number       `json:"id"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Stage     string            `json:"stage,omitempty"`
	Emails    []Email           `json:"emails,omitempty"`
	Addresses []Address         `json:"addresses,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Custom    map[string]string `json:"-"`
}

// Email is one email address on a person.
type Email struct {
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
	IsPrimary int    `json:"isPrimary,omitempty"`
}

// Address is one postal address on a person.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Code   string `json:"code,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Note is a note attached to a person.
type Note struct {
	ID       json.Number `json:"id,omitempty"`
	PersonID json.Number `json:"personId"`
	Subject  string      `json:"subject,omitempty"`
	Body     string      `json:"body"`
	IsHTML   bool        `json:"isHtml,omitempty"`
}

// Task is a follow-up task attached to a person.
type Task struct {
	ID       json.Number `json:"id,omitempty"`
	PersonID json.Number `json:"personId"`
	Name     string      `json:"name"`
	DueDate  string      `json:"dueDate,omitempty"` // YYYY-MM-DD
	Type     string      `json:"type,omitempty"`
}

// APIError is returned when Follow Up Boss responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fub: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit sets a per-second rate limit for API calls. Follow Up Boss
// allows 250 requests per 10 seconds per account.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// httpClient implements Client using net/http. Authentication is HTTP basic
// with the API key as username and an empty password.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Follow Up Boss client.
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

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) GetPerson(ctx context.Context, id string) (*Person, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/people/"+url.PathEscape(id)+"?fields=allFields", &raw); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("fub: get person %s", id))
	}
	return decodePerson(raw)
}

func (c *httpClient) FindPersonByEmail(ctx context.Context, email string) (*Person, error) {
	var resp struct {
		People []json.RawMessage `json:"people"`
	}
	path := "/people?fields=allFields&email=" + url.QueryEscape(email)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("fub: find person %s", email))
	}
	if len(resp.People) == 0 {
		return nil, nil
	}
	return decodePerson(resp.People[0])
}

func (c *httpClient) UpdatePerson(ctx context.Context, id string, fields map[string]any) error {
	if err := c.send(ctx, http.MethodPut, "/people/"+url.PathEscape(id), fields, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("fub: update person %s", id))
	}
	return nil
}

func (c *httpClient) CreateNote(ctx context.Context, note Note) (*Note, error) {
	var created Note
	if err := c.send(ctx, http.MethodPost, "/notes", note, &created); err != nil {
		return nil, eris.Wrap(err, "fub: create note")
	}
	return &created, nil
}

func (c *httpClient) CreateTask(ctx context.Context, task Task) (*Task, error) {
	var created Task
	if err := c.send(ctx, http.MethodPost, "/tasks", task, &created); err != nil {
		return nil, eris.Wrap(err, "fub: create task")
	}
	return &created, nil
}

// decodePerson splits a raw person payload into typed fields and the
// custom* field map the API mixes into the same object.
func decodePerson(raw json.RawMessage) (*Person, error) {
	var p Person
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrap(err, "fub: decode person")
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, eris.Wrap(err, "fub: decode person fields")
	}
	p.Custom = make(map[string]string)
	for k, v := range all {
		if len(k) < 7 || k[:6] != "custom" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			p.Custom[k] = s
			continue
		}
		// Non-string custom values (numbers) keep their literal form.
		p.Custom[k] = string(bytes.Trim(v, `"`))
	}
	return &p, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	return c.do(ctx, req, out)
}

func (c *httpClient) send(ctx context.Context, method, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

func (c *httpClient) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit")
	}

	req.SetBasicAuth(c.apiKey, "")
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

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
