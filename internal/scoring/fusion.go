package scoring

import (
	"math"
	"time"

	"github.com/sells-group/willow/internal/model"
)

// SourceScores holds the four per-source extractor outputs, each on the
// canonical 0-100 scale.
type SourceScores struct {
	Fello    float64 `json:"fello"`
	CloudCMA float64 `json:"cloudcma"`
	Willow   float64 `json:"willow"`
	Sierra   float64 `json:"sierra"`
}

// Result is the full output of a scoring pass for one lead.
type Result struct {
	Composite int                `json:"composite"`
	Tier      model.PriorityTier `json:"tier"`
	Sources   SourceScores       `json:"sources"`
	Triggers  []Trigger          `json:"triggers"`
	ScoredAt  time.Time          `json:"scored_at"`
}

// Engine fuses per-source scores into a composite and classifies it.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine using cfg. Callers should Validate cfg first.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score runs the four extractors against lead, fuses the results, and
// evaluates triggers. It is a pure function of (lead, now): same inputs
// always produce the same Result.
func (e *Engine) Score(lead model.LeadRecord, now time.Time) Result {
	sources := SourceScores{
		Fello:    ScoreFello(lead.Fello),
		CloudCMA: ScoreCloudCMA(lead.CloudCMA, now),
		Willow:   ScoreWillow(lead.Willow, now),
		Sierra:   ScoreSierra(lead.SierraOrZero()),
	}

	composite := e.Fuse(sources)
	return Result{
		Composite: composite,
		Tier:      e.Classify(composite),
		Sources:   sources,
		Triggers:  EvaluateTriggers(lead, now),
		ScoredAt:  now,
	}
}

// Fuse computes the weighted composite score, rounded to the nearest
// integer and clamped to 0-100.
func (e *Engine) Fuse(s SourceScores) int {
	weighted := s.Fello*e.cfg.FelloWeight +
		s.CloudCMA*e.cfg.CloudCMAWeight +
		s.Willow*e.cfg.WillowWeight +
		s.Sierra*e.cfg.SierraWeight
	return int(math.Round(clamp(weighted)))
}

// Classify maps a composite score to a priority tier. Thresholds are
// inclusive: a composite exactly at CriticalAt is CRITICAL.
func (e *Engine) Classify(composite int) model.PriorityTier {
	switch {
	case composite >= e.cfg.CriticalAt:
		return model.TierCritical
	case composite >= e.cfg.SuperHotAt:
		return model.TierSuperHot
	case composite >= e.cfg.HotAt:
		return model.TierHot
	case composite >= e.cfg.WarmAt:
		return model.TierWarm
	default:
		return model.TierCold
	}
}
