package model

import "time"

// CMAJobStatus tracks a report request through its two-phase lifecycle:
// requested when the job is submitted, completed when the webhook delivers
// the authoritative URLs.
type CMAJobStatus string

const (
	CMAJobRequested CMAJobStatus = "requested"
	CMAJobCompleted CMAJobStatus = "completed"
)

// CMAJob correlates an outbound report request with its eventual webhook
// delivery. Token is generated at request time, threaded through the
// provider, and echoed back on the webhook.
type CMAJob struct {
	ID          string       `json:"id"`
	Token       string       `json:"token"`
	LeadID      string       `json:"lead_id"`
	Address     string       `json:"address"`
	CenterValue int64        `json:"center_value"`
	Status      CMAJobStatus `json:"status"`
	EditURL     string       `json:"edit_url,omitempty"`
	PDFURL      string       `json:"pdf_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ScoreSnapshot is one persisted scoring pass for a lead.
type ScoreSnapshot struct {
	ID        string       `json:"id"`
	LeadID    string       `json:"lead_id"`
	Composite int          `json:"composite"`
	Tier      PriorityTier `json:"tier"`
	Sources   []byte       `json:"sources,omitempty"` // per-source breakdown, JSON
	ScoredAt  time.Time    `json:"scored_at"`
}
