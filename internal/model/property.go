package model

// Address is a structured postal address with a free-text fallback used
// when the provider cannot split components.
type Address struct {
	Line       string `json:"line,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Full       string `json:"full,omitempty"`
}

// String returns the best printable form of the address.
func (a Address) String() string {
	if a.Full != "" {
		return a.Full
	}
	out := a.Line
	for _, part := range []string{a.City, a.State, a.PostalCode} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// ValueEstimate is an automated valuation with a confidence band.
type ValueEstimate struct {
	Value int64 `json:"value"`
	Low   int64 `json:"low,omitempty"`
	High  int64 `json:"high,omitempty"`
}

// PropertyRecord describes the subject property of a CMA. It is fetched
// fresh from the property-data provider for each request and never persisted
// beyond it; partial records are normal and every consumer must tolerate
// zero-valued fields.
type PropertyRecord struct {
	Address Address `json:"address"`

	Bedrooms     int     `json:"bedrooms,omitempty"`
	Bathrooms    float64 `json:"bathrooms,omitempty"`
	LivingArea   int     `json:"living_area,omitempty"` // sqft
	LotSize      float64 `json:"lot_size,omitempty"`    // acres
	YearBuilt    int     `json:"year_built,omitempty"`
	Stories      int     `json:"stories,omitempty"`
	Condition    string  `json:"condition,omitempty"`
	GarageSpaces int     `json:"garage_spaces,omitempty"`
	PropertyType string  `json:"property_type,omitempty"` // free text, matched case-insensitively
	Waterfront   bool    `json:"waterfront,omitempty"`

	EstimatedValue   int64          `json:"estimated_value,omitempty"` // dollars
	ValueEstimate    *ValueEstimate `json:"value_estimate,omitempty"`
	BaselineEstimate int64          `json:"baseline_estimate,omitempty"` // seed for the center-range rule
}
