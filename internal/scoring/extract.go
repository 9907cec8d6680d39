package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/willow/internal/model"
)

// clamp bounds a raw extractor total to the canonical 0-100 scale.
func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// daysSince returns whole days elapsed between t and now, or -1 when t is nil.
func daysSince(t *time.Time, now time.Time) int {
	if t == nil {
		return -1
	}
	d := now.Sub(*t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// ScoreFello converts Fello nurture signals to the canonical scale. The
// platform score contributes up to 40 points; the remainder comes from
// engagement counters and the self-reported selling timeline.
func ScoreFello(s model.FelloSignals) float64 {
	score := float64(s.LeadScore) * 0.4

	switch {
	case s.DashboardClicks >= 10:
		score += 25
	case s.DashboardClicks >= 5:
		score += 18
	case s.DashboardClicks >= 2:
		score += 10
	case s.DashboardClicks >= 1:
		score += 5
	}

	switch {
	case s.EmailClicks >= 10:
		score += 15
	case s.EmailClicks >= 5:
		score += 10
	case s.EmailClicks >= 2:
		score += 5
	case s.EmailClicks >= 1:
		score += 2
	}

	switch {
	case s.FormSubmissions >= 3:
		score += 15
	case s.FormSubmissions >= 1:
		score += 10
	}

	timeline := strings.ToLower(s.SellingTimeline)
	switch {
	case strings.Contains(timeline, "immediate"),
		strings.Contains(timeline, "asap"),
		strings.Contains(timeline, "30"),
		strings.Contains(timeline, "1-3"):
		score += 10
	case strings.Contains(timeline, "90"),
		strings.Contains(timeline, "3-6"):
		score += 6
	case strings.Contains(timeline, "6"):
		score += 3
	}

	return clamp(score)
}

// ScoreCloudCMA converts CMA report engagement to the canonical scale.
// Recency of the last view matters more than raw view count.
func ScoreCloudCMA(s model.CloudCMASignals, now time.Time) float64 {
	var score float64

	if s.ReportExists {
		score += 20
	}

	switch {
	case s.Views >= 10:
		score += 30
	case s.Views >= 5:
		score += 22
	case s.Views >= 2:
		score += 15
	case s.Views >= 1:
		score += 8
	}

	if days := daysSince(s.LastViewedAt, now); days >= 0 {
		switch {
		case days <= 7:
			score += 25
		case days <= 30:
			score += 15
		case days <= 90:
			score += 5
		}
	}

	if s.HomebeatURL != "" {
		score += 25
	}

	return clamp(score)
}

// ScoreWillow converts the system's own history for a lead into a signal:
// prior score carryover, CMA recency, estimated home value, and prior tier.
func ScoreWillow(s model.WillowSignals, now time.Time) float64 {
	score := float64(s.PreviousScore) * 0.30

	if days := daysSince(s.LastCMADate, now); days >= 0 {
		switch {
		case days <= 7:
			score += 20
		case days <= 30:
			score += 12
		case days <= 90:
			score += 5
		}
	}

	switch {
	case s.CenterValue >= 2_000_000:
		score += 25
	case s.CenterValue >= 1_000_000:
		score += 18
	case s.CenterValue >= 750_000:
		score += 12
	case s.CenterValue >= 500_000:
		score += 6
	}

	switch s.PriorityTier {
	case model.TierCritical:
		score += 15
	case model.TierSuperHot:
		score += 12
	case model.TierHot:
		score += 8
	case model.TierWarm:
		score += 4
	}

	if s.CMALink != "" {
		score += 10
	}

	return clamp(score)
}

// ScoreSierra converts MLS search activity to the canonical scale. Showing
// requests are the strongest single behavioral signal any source produces.
func ScoreSierra(s model.SierraSignals) float64 {
	var score float64

	switch {
	case s.PropertyViews >= 20:
		score += 25
	case s.PropertyViews >= 10:
		score += 18
	case s.PropertyViews >= 5:
		score += 10
	case s.PropertyViews >= 1:
		score += 5
	}

	switch {
	case s.SavedListings >= 10:
		score += 15
	case s.SavedListings >= 5:
		score += 10
	case s.SavedListings >= 1:
		score += 5
	}

	switch {
	case s.ShowingRequests >= 3:
		score += 35
	case s.ShowingRequests >= 2:
		score += 28
	case s.ShowingRequests >= 1:
		score += 20
	}

	activity := strings.ToLower(s.ActivityLevel)
	switch {
	case strings.Contains(activity, "high"):
		score += 10
	case strings.Contains(activity, "moderate"), strings.Contains(activity, "medium"):
		score += 5
	}

	velocity := strings.ToLower(s.VelocityTrend)
	switch {
	case strings.Contains(velocity, "surging"),
		strings.Contains(velocity, "increasing"),
		strings.Contains(velocity, "accelerating"):
		score += 15
	case strings.Contains(velocity, "steady"):
		score += 6
	}

	return clamp(score)
}
