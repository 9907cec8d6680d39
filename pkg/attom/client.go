// Package attom provides property detail lookups through the ATTOM Data API.
package attom

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

// Default base URL for the ATTOM property API.
const defaultBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"

// Client defines the ATTOM operations used to describe a subject property.
type Client interface {
	GetPropertyDetail(ctx context.Context, line, cityStateZip string) (*PropertyDetail, error)
}

// PropertyDetail is the subset of the ATTOM property/detail response the
// defaults engine consumes.
type PropertyDetail struct {
	Address      string  `json:"address"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	LivingArea   int     `json:"living_area"` // sqft
	LotSizeAcres float64 `json:"lot_size_acres"`
	YearBuilt    int     `json:"year_built"`
	Stories      int     `json:"stories"`
	GarageSpaces int     `json:"garage_spaces"`
	PropertyType string  `json:"property_type"`
	Waterfront   bool    `json:"waterfront"`
	MarketValue  int64   `json:"market_value"` // assessor market value, dollars
}

// APIError is returned when ATTOM responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attom: HTTP %d: %s", e.StatusCode, e.Body)
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

// NewClient creates a new ATTOM client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
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

// attomEnvelope mirrors the relevant slice of ATTOM's deeply nested
// response shape.
type attomEnvelope struct {
	Property []struct {
		Address struct {
			OneLine string `json:"oneLine"`
		} `json:"address"`
		Summary struct {
			PropType  string `json:"proptype"`
			PropClass string `json:"propclass"`
			YearBuilt int    `json:"yearbuilt"`
			WaterType string `json:"waterType"`
		} `json:"summary"`
		Building struct {
			Size struct {
				LivingSize int `json:"livingsize"`
			} `json:"size"`
			Rooms struct {
				Beds       int     `json:"beds"`
				BathsTotal float64 `json:"bathstotal"`
			} `json:"rooms"`
			Summary struct {
				Levels int `json:"levels"`
			} `json:"summary"`
			Parking struct {
				PrkgSpaces string `json:"prkgSpaces"`
			} `json:"parking"`
		} `json:"building"`
		Lot struct {
			LotSizeAcres float64 `json:"lotsize1"`
		} `json:"lot"`
		Assessment struct {
			Market struct {
				MktTtlValue int64 `json:"mktttlvalue"`
			} `json:"market"`
		} `json:"assessment"`
	} `json:"property"`
}

// GetPropertyDetail fetches detail for one address. A miss returns nil, not
// an error.
func (c *httpClient) GetPropertyDetail(ctx context.Context, line, cityStateZip string) (*PropertyDetail, error) {
	u := fmt.Sprintf("%s/property/detail?address1=%s&address2=%s",
		c.baseURL, url.QueryEscape(line), url.QueryEscape(cityStateZip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "attom: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "attom: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "attom: read response body")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var envelope attomEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, eris.Wrap(err, "attom: decode response")
	}
	if len(envelope.Property) == 0 {
		return nil, nil
	}

	p := envelope.Property[0]
	spaces := 0
	fmt.Sscanf(p.Building.Parking.PrkgSpaces, "%d", &spaces)
	return &PropertyDetail{
		Address:      p.Address.OneLine,
		Bedrooms:     p.Building.Rooms.Beds,
		Bathrooms:    p.Building.Rooms.BathsTotal,
		LivingArea:   p.Building.Size.LivingSize,
		LotSizeAcres: p.Lot.LotSizeAcres,
		YearBuilt:    p.Summary.YearBuilt,
		Stories:      p.Building.Summary.Levels,
		GarageSpaces: spaces,
		PropertyType: p.Summary.PropType,
		Waterfront:   p.Summary.WaterType != "",
		MarketValue:  p.Assessment.Market.MktTtlValue,
	}, nil
}
