// Package model defines the lead and property records exchanged between the
// external systems and the scoring engines.
package model

import "time"

// LeadRecord is one CRM contact with the engagement signals collected from
// each upstream source. Every signal field is optional: upstream systems
// routinely omit whole sections, and absence always means "no contribution",
// never an error.
//
// The record is owned by the external CRM. This system only reads it and
// writes back the derived Willow-owned fields through the crm package
// whitelist; Fello-owned fields are read-only at that boundary.
type LeadRecord struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`

	Fello    FelloSignals    `json:"fello"`
	CloudCMA CloudCMASignals `json:"cloudcma"`
	Willow   WillowSignals   `json:"willow"`
	Sierra   *SierraSignals  `json:"sierra,omitempty"` // source may not exist upstream
}

// FelloSignals holds engagement data from the lead-capture platform.
type FelloSignals struct {
	LeadScore       int    `json:"lead_score"` // 0-100 platform quality score
	DashboardClicks int    `json:"dashboard_clicks"`
	EmailClicks     int    `json:"email_clicks"`
	FormSubmissions int    `json:"form_submissions"`
	SellingTimeline string `json:"selling_timeline,omitempty"` // free text
	PropertiesOwned int    `json:"properties_owned"`
}

// CloudCMASignals holds report-engagement data from the CMA platform.
type CloudCMASignals struct {
	Views        int        `json:"views"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	ReportExists bool       `json:"report_exists"`
	HomebeatURL  string     `json:"homebeat_url,omitempty"` // live recurring report
}

// WillowSignals holds the fields this system wrote on prior runs.
type WillowSignals struct {
	PreviousScore int          `json:"previous_score"`
	LastCMADate   *time.Time   `json:"last_cma_date,omitempty"`
	CenterValue   int64        `json:"center_value"` // dollars
	PriorityTier  PriorityTier `json:"priority_tier,omitempty"`
	CMALink       string       `json:"cma_link,omitempty"`
}

// SierraSignals holds search-activity data from the listing-alert platform.
// The whole section is optional upstream; a nil *SierraSignals contributes
// zero everywhere.
type SierraSignals struct {
	PropertyViews   int    `json:"property_views"`
	SavedListings   int    `json:"saved_listings"`
	ShowingRequests int    `json:"showing_requests"`
	ActivityLevel   string `json:"activity_level,omitempty"` // free text
	VelocityTrend   string `json:"velocity_trend,omitempty"` // free text
}

// SierraOrZero returns the Sierra section, or a zero value when the source
// is absent.
func (l *LeadRecord) SierraOrZero() SierraSignals {
	if l.Sierra == nil {
		return SierraSignals{}
	}
	return *l.Sierra
}
