// Package smartdefaults derives CMA search parameters from property and
// lead context through an ordered rule cascade. Rules fire in a fixed
// order; a later rule that sets a parameter overwrites both the value and
// the recorded reasoning of an earlier one. A final clamp pass bounds every
// parameter regardless of which rules fired.
package smartdefaults

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sells-group/willow/internal/model"
)

// Confidence reflects how standard the derived parameters are. Unusual
// properties (waterfront, rural) get MEDIUM so an agent reviews before
// sending.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
)

// Base values before any rule fires.
const (
	baseRadiusMiles  = 3.0
	baseLookbackDays = 180
	baseComparables  = 6
	baseVariancePct  = 15
)

// Parameter bounds applied after the cascade.
const (
	minRadiusMiles  = 1.0
	maxRadiusMiles  = 15.0
	minLookbackDays = 60
	maxLookbackDays = 365
	minComparables  = 3
	maxComparables  = 12
	minVariancePct  = 5
	maxVariancePct  = 30
)

// Reasons records, per parameter, the last rule that set it.
type Reasons struct {
	Radius      string `json:"radius"`
	Lookback    string `json:"lookback"`
	Comparables string `json:"comparables"`
	Variance    string `json:"variance"`
}

// Defaults is the derived CMA parameter bundle.
type Defaults struct {
	RadiusMiles      float64 `json:"radius_miles"`
	LookbackDays     int     `json:"lookback_days"`
	Comparables      int     `json:"comparables"`
	PriceVariancePct int     `json:"price_variance_pct"`
	Confidence       string  `json:"confidence"`
	Reasons          Reasons `json:"reasons"`
	RulesApplied     []string `json:"rules_applied"`
}

// MarketConditions captures the coarse local-market state fed into the
// cascade. Zero value means a balanced market and changes nothing.
type MarketConditions struct {
	InventoryLow      bool `json:"inventory_low"`
	RapidAppreciation bool `json:"rapid_appreciation"`
}

// Input is everything the cascade looks at for one derivation.
type Input struct {
	Property model.PropertyRecord
	Tier     model.PriorityTier
	// LastCMADate is the lead's most recent prior CMA, nil when none exists.
	LastCMADate *time.Time
	Market      MarketConditions
}

var urbanMarkets = []string{"poughkeepsie", "newburgh", "kingston"}

var ruralMarkets = []string{"rhinebeck", "red hook", "milan", "tivoli", "stanfordville"}

// Derive runs the cascade against in and returns the clamped bundle.
func Derive(in Input, now time.Time) Defaults {
	d := Defaults{
		RadiusMiles:      baseRadiusMiles,
		LookbackDays:     baseLookbackDays,
		Comparables:      baseComparables,
		PriceVariancePct: baseVariancePct,
		Confidence:       ConfidenceHigh,
		Reasons: Reasons{
			Radius:      "standard search radius",
			Lookback:    "standard lookback window",
			Comparables: "standard comparable count",
			Variance:    "standard price variance",
		},
	}

	applyValueRules(&d, in.Property)
	applyWaterfrontRule(&d, in.Property)
	applyPropertyTypeRule(&d, in.Property)
	applySquareFootageRule(&d, in.Property)
	applyCMAAgeRule(&d, in.LastCMADate, now)
	applyMarketRules(&d, in.Market)
	applyGeographicRules(&d, in.Property)
	applyTierRule(&d, in.Tier)
	applyFirstCMARule(&d, in.LastCMADate)

	clampDefaults(&d)
	return d
}

func (d *Defaults) applied(rule string) {
	d.RulesApplied = append(d.RulesApplied, rule)
}

func applyValueRules(d *Defaults, p model.PropertyRecord) {
	switch {
	case p.EstimatedValue > 750_000:
		d.RadiusMiles = 5
		d.Comparables = 8
		d.PriceVariancePct = 20
		d.Reasons.Radius = "high-value property: widened radius for comparable inventory"
		d.Reasons.Comparables = "high-value property: more comparables for a defensible range"
		d.Reasons.Variance = "high-value property: wider variance band"
		d.applied("high_value")
	case p.EstimatedValue > 0 && p.EstimatedValue < 250_000:
		d.RadiusMiles = 2
		d.PriceVariancePct = 10
		d.Reasons.Radius = "entry-level property: tightened radius"
		d.Reasons.Variance = "entry-level property: tightened variance band"
		d.applied("entry_level")
	}
}

func applyWaterfrontRule(d *Defaults, p model.PropertyRecord) {
	if !p.Waterfront {
		return
	}
	d.RadiusMiles = 10
	d.LookbackDays = 270
	d.Comparables = 8
	d.PriceVariancePct = 25
	d.Confidence = ConfidenceMedium
	d.Reasons.Radius = "waterfront property: comparables are scarce, widened radius"
	d.Reasons.Lookback = "waterfront property: extended lookback for scarce sales"
	d.Reasons.Comparables = "waterfront property: more comparables requested"
	d.Reasons.Variance = "waterfront property: values vary widely"
	d.applied("waterfront")
}

func applyPropertyTypeRule(d *Defaults, p model.PropertyRecord) {
	t := strings.ToLower(p.PropertyType)
	if !strings.Contains(t, "condo") && !strings.Contains(t, "townhouse") {
		return
	}
	d.RadiusMiles = 1.5
	d.Comparables = 8
	d.Reasons.Radius = "condo/townhouse: comparables cluster tightly, narrowed radius"
	d.Reasons.Comparables = "condo/townhouse: more in-complex comparables"
	d.applied("condo_townhouse")
}

func applySquareFootageRule(d *Defaults, p model.PropertyRecord) {
	if p.LivingArea <= 4000 {
		return
	}
	d.RadiusMiles = 7
	d.Comparables = 8
	d.Reasons.Radius = "large home: widened radius for similar square footage"
	d.Reasons.Comparables = "large home: more comparables requested"
	d.applied("large_home")
}

func applyCMAAgeRule(d *Defaults, lastCMA *time.Time, now time.Time) {
	if lastCMA == nil {
		return
	}
	age := now.Sub(*lastCMA)
	switch {
	case age > 6*30*24*time.Hour:
		d.LookbackDays = 270
		d.Reasons.Lookback = "prior report is stale: extended lookback to rebuild context"
		d.applied("stale_prior_cma")
	case age < 2*30*24*time.Hour:
		d.LookbackDays = 90
		d.Reasons.Lookback = "recent prior report: shortened lookback to fresh sales"
		d.applied("fresh_prior_cma")
	}
}

func applyMarketRules(d *Defaults, m MarketConditions) {
	if m.InventoryLow {
		d.LookbackDays = 270
		d.RadiusMiles += 2
		d.Reasons.Lookback = "low inventory market: extended lookback for enough sales"
		d.Reasons.Radius = "low inventory market: widened radius"
		d.applied("low_inventory")
	}
	if m.RapidAppreciation {
		d.LookbackDays = 120
		d.Comparables = 8
		d.PriceVariancePct += 10
		d.Reasons.Lookback = "rapidly appreciating market: older sales misprice, shortened lookback"
		d.Reasons.Comparables = "rapidly appreciating market: more comparables to smooth noise"
		d.Reasons.Variance = "rapidly appreciating market: widened variance band"
		d.applied("rapid_appreciation")
	}
}

func applyGeographicRules(d *Defaults, p model.PropertyRecord) {
	addr := strings.ToLower(p.Address.String())
	for _, m := range urbanMarkets {
		if strings.Contains(addr, m) {
			d.RadiusMiles = 2
			d.LookbackDays = 90
			d.Reasons.Radius = fmt.Sprintf("dense market (%s): tightened radius", m)
			d.Reasons.Lookback = fmt.Sprintf("dense market (%s): plenty of recent sales", m)
			d.applied("urban_market")
			return
		}
	}
	for _, m := range ruralMarkets {
		if strings.Contains(addr, m) {
			d.RadiusMiles = 10
			d.LookbackDays = 270
			d.Confidence = ConfidenceMedium
			d.Reasons.Radius = fmt.Sprintf("rural market (%s): widened radius for sparse sales", m)
			d.Reasons.Lookback = fmt.Sprintf("rural market (%s): extended lookback for sparse sales", m)
			d.applied("rural_market")
			return
		}
	}
}

func applyTierRule(d *Defaults, tier model.PriorityTier) {
	if !tier.AtLeast(model.TierHot) {
		return
	}
	d.Comparables = 8
	d.Reasons.Comparables = "high priority lead: fuller report requested"
	d.applied("priority_lead")
}

func applyFirstCMARule(d *Defaults, lastCMA *time.Time) {
	if lastCMA != nil {
		return
	}
	d.Comparables = 8
	d.Reasons.Comparables = "first report for this lead: fuller comparable set"
	d.applied("first_cma")
}

// clampDefaults bounds every parameter. Radius additionally snaps to the
// nearest half mile so downstream search APIs get clean values.
func clampDefaults(d *Defaults) {
	d.RadiusMiles = math.Round(d.RadiusMiles*2) / 2
	d.RadiusMiles = math.Max(minRadiusMiles, math.Min(maxRadiusMiles, d.RadiusMiles))
	d.LookbackDays = clampInt(d.LookbackDays, minLookbackDays, maxLookbackDays)
	d.Comparables = clampInt(d.Comparables, minComparables, maxComparables)
	d.PriceVariancePct = clampInt(d.PriceVariancePct, minVariancePct, maxVariancePct)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
