package scoring

import (
	"fmt"
	"time"

	"github.com/sells-group/willow/internal/model"
)

// Trigger is a named high-intent condition that fired for a lead, with the
// source system it came from. Triggers feed agent-facing explanations and
// CRM task text, not the composite score.
type Trigger struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Detail string `json:"detail"`
}

// recentCMAViewDays is the window in which a CMA report view counts as a
// high-intent event on its own.
const recentCMAViewDays = 7

// EvaluateTriggers checks every trigger condition against lead and returns
// the ones that fired, in fixed evaluation order so output is deterministic.
func EvaluateTriggers(lead model.LeadRecord, now time.Time) []Trigger {
	var fired []Trigger

	if lead.Fello.LeadScore >= 70 {
		fired = append(fired, Trigger{
			Name:   "high_platform_score",
			Source: "fello",
			Detail: fmt.Sprintf("Fello lead score %d (threshold 70)", lead.Fello.LeadScore),
		})
	}

	if days := daysSince(lead.CloudCMA.LastViewedAt, now); days >= 0 && days <= recentCMAViewDays {
		fired = append(fired, Trigger{
			Name:   "recent_cma_view",
			Source: "cloudcma",
			Detail: fmt.Sprintf("CMA report viewed %d day(s) ago", days),
		})
	}

	if lead.Willow.CenterValue >= 750_000 {
		fired = append(fired, Trigger{
			Name:   "high_value_property",
			Source: "willow",
			Detail: fmt.Sprintf("estimated value $%d (threshold $750,000)", lead.Willow.CenterValue),
		})
	}

	sierra := lead.SierraOrZero()
	if sierra.PropertyViews >= 10 {
		fired = append(fired, Trigger{
			Name:   "active_property_search",
			Source: "sierra",
			Detail: fmt.Sprintf("%d property views (threshold 10)", sierra.PropertyViews),
		})
	}
	if sierra.ShowingRequests >= 1 {
		fired = append(fired, Trigger{
			Name:   "showing_requested",
			Source: "sierra",
			Detail: fmt.Sprintf("%d showing request(s)", sierra.ShowingRequests),
		})
	}

	return fired
}
