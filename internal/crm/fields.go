// Package crm maps between Follow Up Boss person records and the
// intelligence pipeline's domain types, and enforces the custom-field
// ownership boundary: Willow writes only its own fields and never the
// fields other platforms sync.
package crm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/willow/internal/scoring"
	"github.com/sells-group/willow/pkg/fub"
)

// Custom fields Willow owns and may write.
const (
	FieldScore       = "customWillowScore"
	FieldPriority    = "customWillowPriority"
	FieldTriggers    = "customWillowTriggers"
	FieldLastScored  = "customWillowLastScored"
	FieldCMALink     = "customWillowCMALink"
	FieldLastCMADate = "customWillowLastCMADate"
	FieldCenterValue = "customWillowCenterValue"
)

// Custom fields read from other platforms' syncs. Never written.
const (
	fieldFelloLeadScore       = "customFelloLeadScore"
	fieldFelloDashboardClicks = "customFelloDashboardClicks"
	fieldFelloEmailClicks     = "customFelloEmailClicks"
	fieldFelloFormSubmissions = "customFelloFormSubmissions"
	fieldFelloTimeline        = "customFelloSellingTimeline"
	fieldFelloPropertiesOwned = "customFelloPropertiesOwned"

	fieldCloudCMAViews      = "customCloudCMAViews"
	fieldCloudCMALastViewed = "customCloudCMALastViewed"
	fieldHomebeatURL        = "customHomebeatURL"

	fieldSierraPropertyViews   = "customSierraPropertyViews"
	fieldSierraSavedListings   = "customSierraSavedListings"
	fieldSierraShowingRequests = "customSierraShowingRequests"
	fieldSierraActivityLevel   = "customSierraActivityLevel"
	fieldSierraVelocity        = "customSierraVelocityTrend"
)

// writableFields is the closed set of keys an update may touch.
var writableFields = map[string]bool{
	FieldScore:       true,
	FieldPriority:    true,
	FieldTriggers:    true,
	FieldLastScored:  true,
	FieldCMALink:     true,
	FieldLastCMADate: true,
	FieldCenterValue: true,
}

// ValidateWritable rejects any update that touches a field outside the
// Willow-owned set. Writes to synced platform fields would be silently
// clobbered on the next sync and corrupt the upstream source of truth.
func ValidateWritable(fields map[string]any) error {
	for k := range fields {
		if !writableFields[k] {
			return eris.Errorf("crm: field %q is not writable by willow", k)
		}
	}
	return nil
}

// ScoreFields builds the writeback payload for one scoring result.
func ScoreFields(res scoring.Result) map[string]any {
	triggers := make([]string, 0, len(res.Triggers))
	for _, tr := range res.Triggers {
		triggers = append(triggers, tr.Name)
	}

	return map[string]any{
		FieldScore:      strconv.Itoa(res.Composite),
		FieldPriority:   string(res.Tier),
		FieldTriggers:   strings.Join(triggers, ","),
		FieldLastScored: res.ScoredAt.UTC().Format(time.RFC3339),
	}
}

// CMAFields builds the writeback payload recorded when a report completes.
func CMAFields(editURL string, centerValue int64, completedAt time.Time) map[string]any {
	fields := map[string]any{
		FieldCMALink:     editURL,
		FieldLastCMADate: completedAt.UTC().Format(time.RFC3339),
	}
	if centerValue > 0 {
		fields[FieldCenterValue] = strconv.FormatInt(centerValue, 10)
	}
	return fields
}

// parseInt reads an integer custom field, tolerating floats, empty values,
// and junk. Anything unparseable contributes zero.
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseTime reads a timestamp custom field in any of the formats the
// upstream platforms emit. Nil means absent or unparseable.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// PriorityNote builds the agent-facing note recorded when a lead scores HOT
// or above, explaining what fired.
func PriorityNote(leadID string, res scoring.Result) fub.Note {
	return fub.Note{
		PersonID: jsonNumber(leadID),
		Subject:  fmt.Sprintf("Willow: %s seller lead", res.Tier),
		Body: fmt.Sprintf("Composite score %d. Triggers: %s.",
			res.Composite, triggersSummary(res.Triggers)),
	}
}

// triggersSummary renders fired triggers as a short human-readable line for
// notes and tasks.
func triggersSummary(triggers []scoring.Trigger) string {
	if len(triggers) == 0 {
		return "no individual triggers fired"
	}
	parts := make([]string, 0, len(triggers))
	for _, tr := range triggers {
		parts = append(parts, fmt.Sprintf("%s (%s)", tr.Name, tr.Source))
	}
	return strings.Join(parts, "; ")
}
