// Package intel orchestrates the lead-intelligence pipeline: gather signals
// from every platform, score, derive CMA parameters, and write the results
// back to the CRM.
package intel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/willow/internal/crm"
	"github.com/sells-group/willow/internal/model"
	"github.com/sells-group/willow/internal/resilience"
	"github.com/sells-group/willow/internal/scoring"
	"github.com/sells-group/willow/internal/smartdefaults"
	"github.com/sells-group/willow/internal/store"
	"github.com/sells-group/willow/internal/valuation"
	"github.com/sells-group/willow/pkg/attom"
	"github.com/sells-group/willow/pkg/cloudcma"
	"github.com/sells-group/willow/pkg/fub"
	"github.com/sells-group/willow/pkg/zestimate"
)

// Config tunes pipeline behavior.
type Config struct {
	// AgentEmail is the Cloud CMA account that owns generated reports.
	AgentEmail string
	// WebhookURL is the public callback endpoint threaded into report
	// requests; the correlation token is appended as a query parameter.
	WebhookURL string
	// PropertyCacheTTL bounds how long provider property data is reused.
	PropertyCacheTTL time.Duration
	// Market is the operator-maintained view of current local conditions.
	Market smartdefaults.MarketConditions
	// MaxConcurrent bounds how many leads AnalyzeMany scores at once.
	MaxConcurrent int
}

// Pipeline wires the platform clients, the store, and the engines.
type Pipeline struct {
	crm    fub.Client
	cma    cloudcma.Client
	prop   attom.Client
	val    zestimate.Client
	store  store.Store
	engine *scoring.Engine
	cfg    Config
	retry  resilience.Policy
	now    func() time.Time
}

// New constructs a Pipeline.
func New(crmClient fub.Client, cmaClient cloudcma.Client, propClient attom.Client,
	valClient zestimate.Client, st store.Store, engine *scoring.Engine, cfg Config) *Pipeline {
	if cfg.PropertyCacheTTL <= 0 {
		cfg.PropertyCacheTTL = 24 * time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	return &Pipeline{
		crm:    crmClient,
		cma:    cmaClient,
		prop:   propClient,
		val:    valClient,
		store:  st,
		engine: engine,
		cfg:    cfg,
		retry:  resilience.DefaultPolicy(),
		now:    time.Now,
	}
}

// Intelligence is the full derived picture for one lead.
type Intelligence struct {
	Lead     model.LeadRecord       `json:"lead"`
	Property *model.PropertyRecord  `json:"property,omitempty"`
	Score    scoring.Result         `json:"score"`
	Defaults smartdefaults.Defaults `json:"cma_defaults"`
	Estimate valuation.Estimate     `json:"valuation"`
}

// Analyze runs the whole pipeline for one lead: fetch the CRM record and
// property data concurrently, score, derive CMA defaults, persist the
// snapshot, and write the Willow fields back to the CRM.
func (p *Pipeline) Analyze(ctx context.Context, leadID string) (*Intelligence, error) {
	intel, err := p.analyze(ctx, leadID)
	if err != nil {
		return nil, err
	}
	lead := intel.Lead
	result := intel.Score

	if err := p.persistScore(ctx, lead.ID, result); err != nil {
		return nil, err
	}
	if err := p.writebackScore(ctx, lead.ID, result); err != nil {
		// The CRM write is retried inside; a final failure still leaves a
		// usable result and a recorded snapshot.
		zap.L().Error("score writeback failed", zap.String("lead_id", lead.ID), zap.Error(err))
	} else if result.Tier.AtLeast(model.TierHot) {
		if _, err := p.crm.CreateNote(ctx, crm.PriorityNote(lead.ID, result)); err != nil {
			zap.L().Warn("priority note failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}

	zap.L().Info("lead analyzed",
		zap.String("lead_id", lead.ID),
		zap.Int("composite", result.Composite),
		zap.String("tier", string(result.Tier)),
		zap.Int("triggers", len(result.Triggers)),
	)
	return intel, nil
}

// AnalyzeMany scores several leads, at most MaxConcurrent at a time.
// Results keep the order of leadIDs.
func (p *Pipeline) AnalyzeMany(ctx context.Context, leadIDs []string) ([]*Intelligence, error) {
	out := make([]*Intelligence, len(leadIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrent)
	for i, id := range leadIDs {
		g.Go(func() error {
			res, err := p.Analyze(gctx, id)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Preview computes the same picture as Analyze without persisting the
// snapshot or touching the CRM.
func (p *Pipeline) Preview(ctx context.Context, leadID string) (*Intelligence, error) {
	return p.analyze(ctx, leadID)
}

func (p *Pipeline) analyze(ctx context.Context, leadID string) (*Intelligence, error) {
	person, err := resilience.DoVal(ctx, p.retry, "fub.get_person", func(ctx context.Context) (*fub.Person, error) {
		return p.crm.GetPerson(ctx, leadID)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "intel: fetch lead %s", leadID)
	}

	lead := crm.LeadFromPerson(person)
	property := p.fetchProperty(ctx, lead.Address)

	now := p.now()
	result := p.engine.Score(lead, now)

	baseline := int64(0)
	if property != nil {
		baseline = property.BaselineEstimate
	}
	estimate := valuation.FromBaseline(baseline)
	defaults := p.deriveDefaults(lead, property, result.Tier, now)

	return &Intelligence{
		Lead:     lead,
		Property: property,
		Score:    result,
		Defaults: defaults,
		Estimate: estimate,
	}, nil
}

// CMARequest is the outcome of a report request: the provisional response
// plus the correlation record awaiting the webhook.
type CMARequest struct {
	Job      *model.CMAJob            `json:"job"`
	Report   *cloudcma.ReportResponse `json:"report"`
	Defaults smartdefaults.Defaults   `json:"defaults"`
	Estimate valuation.Estimate       `json:"valuation"`
}

// GenerateCMA requests a report for a lead using derived smart defaults,
// recording a correlation job so the completion webhook can be matched.
func (p *Pipeline) GenerateCMA(ctx context.Context, leadID string) (*CMARequest, error) {
	intel, err := p.analyze(ctx, leadID)
	if err != nil {
		return nil, err
	}
	lead := intel.Lead
	if strings.TrimSpace(lead.Address) == "" {
		return nil, eris.Errorf("intel: lead %s has no address", leadID)
	}
	estimate := intel.Estimate
	defaults := intel.Defaults

	token := uuid.New().String()
	job, err := p.store.CreateCMAJob(ctx, model.CMAJob{
		Token:       token,
		LeadID:      lead.ID,
		Address:     lead.Address,
		CenterValue: estimate.Center,
	})
	if err != nil {
		return nil, eris.Wrap(err, "intel: record cma job")
	}

	req := cloudcma.ReportRequest{
		AgentEmail:   p.cfg.AgentEmail,
		Address:      lead.Address,
		CenterPrice:  estimate.Center,
		SearchRadius: defaults.RadiusMiles,
		MonthsBack:   monthsFromDays(defaults.LookbackDays),
		CompCount:    defaults.Comparables,
		WebhookURL:   webhookWithToken(p.cfg.WebhookURL, token),
	}
	report, err := resilience.DoVal(ctx, p.retry, "cloudcma.request_report", func(ctx context.Context) (*cloudcma.ReportResponse, error) {
		return p.cma.RequestReport(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "intel: request report for %s", leadID)
	}

	zap.L().Info("cma report requested",
		zap.String("lead_id", lead.ID),
		zap.String("report_id", report.ID),
		zap.String("token", token),
		zap.Int64("center_value", estimate.Center),
	)
	return &CMARequest{Job: job, Report: report, Defaults: defaults, Estimate: estimate}, nil
}

// fetchProperty assembles a PropertyRecord from the cache or the property
// and valuation providers, queried concurrently. Provider failures degrade
// to a nil record; the engines treat missing data as zero contribution.
func (p *Pipeline) fetchProperty(ctx context.Context, address string) *model.PropertyRecord {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	key := cacheKey(address)
	if cached, err := p.store.GetCachedProperty(ctx, key); err == nil && cached != nil {
		var rec model.PropertyRecord
		if err := json.Unmarshal(cached, &rec); err == nil {
			return &rec
		}
	}

	line, cityStateZip := splitAddress(address)

	var detail *attom.PropertyDetail
	var val *zestimate.Valuation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := resilience.DoVal(gctx, p.retry, "attom.property_detail", func(ctx context.Context) (*attom.PropertyDetail, error) {
			return p.prop.GetPropertyDetail(ctx, line, cityStateZip)
		})
		if err != nil {
			zap.L().Warn("property detail unavailable", zap.String("address", address), zap.Error(err))
			return nil
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		v, err := resilience.DoVal(gctx, p.retry, "zestimate.get_valuation", func(ctx context.Context) (*zestimate.Valuation, error) {
			return p.val.GetValuation(ctx, address)
		})
		if err != nil {
			zap.L().Warn("valuation unavailable", zap.String("address", address), zap.Error(err))
			return nil
		}
		val = v
		return nil
	})
	_ = g.Wait() // both goroutines degrade instead of failing

	if detail == nil && val == nil {
		return nil
	}

	rec := &model.PropertyRecord{Address: model.Address{Full: address}}
	if detail != nil {
		rec.Bedrooms = detail.Bedrooms
		rec.Bathrooms = detail.Bathrooms
		rec.LivingArea = detail.LivingArea
		rec.LotSize = detail.LotSizeAcres
		rec.YearBuilt = detail.YearBuilt
		rec.Stories = detail.Stories
		rec.GarageSpaces = detail.GarageSpaces
		rec.PropertyType = detail.PropertyType
		rec.Waterfront = detail.Waterfront
		rec.EstimatedValue = detail.MarketValue
	}
	if val != nil {
		rec.BaselineEstimate = val.Zestimate
		if rec.EstimatedValue == 0 {
			rec.EstimatedValue = val.Zestimate
		}
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := p.store.SetCachedProperty(ctx, key, data, p.cfg.PropertyCacheTTL); err != nil {
			zap.L().Warn("property cache write failed", zap.String("address", address), zap.Error(err))
		}
	}
	return rec
}

func (p *Pipeline) deriveDefaults(lead model.LeadRecord, property *model.PropertyRecord,
	tier model.PriorityTier, now time.Time) smartdefaults.Defaults {
	prop := model.PropertyRecord{Address: model.Address{Full: lead.Address}}
	if property != nil {
		prop = *property
	}
	return smartdefaults.Derive(smartdefaults.Input{
		Property:    prop,
		Tier:        tier,
		LastCMADate: lead.Willow.LastCMADate,
		Market:      p.cfg.Market,
	}, now)
}

func (p *Pipeline) persistScore(ctx context.Context, leadID string, result scoring.Result) error {
	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return eris.Wrap(err, "intel: marshal sources")
	}
	_, err = p.store.RecordScore(ctx, model.ScoreSnapshot{
		LeadID:    leadID,
		Composite: result.Composite,
		Tier:      result.Tier,
		Sources:   sources,
		ScoredAt:  result.ScoredAt,
	})
	return eris.Wrap(err, "intel: record score")
}

func (p *Pipeline) writebackScore(ctx context.Context, leadID string, result scoring.Result) error {
	fields := crm.ScoreFields(result)
	if err := crm.ValidateWritable(fields); err != nil {
		return err
	}
	return resilience.Do(ctx, p.retry, "fub.update_person", func(ctx context.Context) error {
		return p.crm.UpdatePerson(ctx, leadID, fields)
	})
}

// cacheKey normalizes an address into a stable lookup key.
func cacheKey(address string) string {
	key := strings.ToLower(strings.TrimSpace(address))
	key = strings.Join(strings.Fields(key), " ")
	return strings.ReplaceAll(key, ",", "")
}

// splitAddress separates "12 Main St, Poughkeepsie, NY 12601" into the
// street line and the city/state/zip remainder the property API wants.
func splitAddress(address string) (line, cityStateZip string) {
	parts := strings.SplitN(address, ",", 2)
	line = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		cityStateZip = strings.TrimSpace(parts[1])
	}
	return line, cityStateZip
}

// monthsFromDays converts a lookback window to the whole months the report
// provider accepts, rounding up so the window never shrinks.
func monthsFromDays(days int) int {
	months := (days + 29) / 30
	if months < 1 {
		months = 1
	}
	return months
}

// webhookWithToken appends the correlation token to the callback URL.
func webhookWithToken(base, token string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + token
}
