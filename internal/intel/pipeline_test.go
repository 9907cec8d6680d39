package intel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/willow/internal/model"
	"github.com/sells-group/willow/internal/scoring"
	"github.com/sells-group/willow/internal/store"
	"github.com/sells-group/willow/pkg/attom"
	"github.com/sells-group/willow/pkg/cloudcma"
	"github.com/sells-group/willow/pkg/fub"
	"github.com/sells-group/willow/pkg/zestimate"
)

type fakeCRM struct {
	mu      sync.Mutex
	person  *fub.Person
	getErr  error
	updates []map[string]any
	notes   []fub.Note
	tasks   []fub.Task
}

func (f *fakeCRM) GetPerson(_ context.Context, _ string) (*fub.Person, error) {
	return f.person, f.getErr
}

func (f *fakeCRM) FindPersonByEmail(_ context.Context, _ string) (*fub.Person, error) {
	return f.person, nil
}

func (f *fakeCRM) UpdatePerson(_ context.Context, _ string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeCRM) CreateNote(_ context.Context, note fub.Note) (*fub.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return &note, nil
}

func (f *fakeCRM) CreateTask(_ context.Context, task fub.Task) (*fub.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &task, nil
}

type fakeCMA struct {
	requests []cloudcma.ReportRequest
}

func (f *fakeCMA) RequestReport(_ context.Context, req cloudcma.ReportRequest) (*cloudcma.ReportResponse, error) {
	f.requests = append(f.requests, req)
	return &cloudcma.ReportResponse{ID: "rpt-1", Status: "pending", EditURL: "https://cloudcma.com/cmas/rpt-1/edit"}, nil
}

func (f *fakeCMA) GetReport(_ context.Context, id string) (*cloudcma.Report, error) {
	return &cloudcma.Report{ID: id}, nil
}

type fakeAttom struct {
	mu     sync.Mutex
	detail *attom.PropertyDetail
	err    error
	calls  int
}

func (f *fakeAttom) GetPropertyDetail(_ context.Context, _, _ string) (*attom.PropertyDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.detail, f.err
}

type fakeZestimate struct {
	mu    sync.Mutex
	val   *zestimate.Valuation
	err   error
	calls int
}

func (f *fakeZestimate) GetValuation(_ context.Context, _ string) (*zestimate.Valuation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.val, f.err
}

func testPerson() *fub.Person {
	return &fub.Person{
		ID:        "42",
		FirstName: "Dana",
		LastName:  "Reeves",
		Emails:    []fub.Email{{Value: "dana@example.com", IsPrimary: 1}},
		Addresses: []fub.Address{{
			Street: "12 Garden St",
			City:   "Rhinebeck",
			State:  "NY",
			Code:   "12572",
			Type:   "home",
		}},
		Custom: map[string]string{
			"customFelloLeadScore":       "80",
			"customFelloDashboardClicks": "12",
			"customFelloEmailClicks":     "6",
		},
	}
}

func newTestPipeline(t *testing.T, crmClient fub.Client, cmaClient cloudcma.Client,
	propClient attom.Client, valClient zestimate.Client) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	engine := scoring.NewEngine(scoring.DefaultConfig())
	p := New(crmClient, cmaClient, propClient, valClient, st, engine, Config{
		AgentEmail:       "agent@sellsgroup.com",
		WebhookURL:       "https://willow.sellsgroup.com/webhook/cloudcma",
		PropertyCacheTTL: time.Hour,
	})
	return p, st
}

func TestAnalyze(t *testing.T) {
	crmClient := &fakeCRM{person: testPerson()}
	propClient := &fakeAttom{detail: &attom.PropertyDetail{
		Bedrooms: 4, Bathrooms: 2.5, LivingArea: 2400, PropertyType: "Single Family",
	}}
	valClient := &fakeZestimate{val: &zestimate.Valuation{Zestimate: 412300}}
	p, st := newTestPipeline(t, crmClient, &fakeCMA{}, propClient, valClient)

	intel, err := p.Analyze(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "42", intel.Lead.ID)
	assert.Greater(t, intel.Score.Composite, 0)
	require.NotNil(t, intel.Property)
	assert.Equal(t, int64(412300), intel.Property.BaselineEstimate)
	assert.Equal(t, int64(425000), intel.Estimate.Center)
	assert.Equal(t, "provided", intel.Estimate.Source)

	// Writeback went through the whitelist. A lead below HOT gets no note.
	require.Len(t, crmClient.updates, 1)
	assert.Contains(t, crmClient.updates[0], "customWillowScore")
	assert.Contains(t, crmClient.updates[0], "customWillowPriority")
	assert.Empty(t, crmClient.notes)

	// Snapshot persisted.
	snap, err := st.LatestScore(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, intel.Score.Composite, snap.Composite)
}

func TestAnalyzeHotLeadNote(t *testing.T) {
	person := testPerson()
	recent := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	person.Custom = map[string]string{
		"customFelloLeadScore":        "100",
		"customFelloDashboardClicks":  "12",
		"customFelloEmailClicks":      "10",
		"customFelloFormSubmissions":  "3",
		"customFelloSellingTimeline":  "asap",
		"customCloudCMAViews":         "10",
		"customCloudCMALastViewed":    recent,
		"customHomebeatURL":           "https://homebeat.example/h/1",
		"customWillowCMALink":         "https://cloudcma.example/edit/1",
		"customSierraPropertyViews":   "20",
		"customSierraShowingRequests": "3",
	}
	crmClient := &fakeCRM{person: person}
	p, _ := newTestPipeline(t, crmClient, &fakeCMA{}, &fakeAttom{}, &fakeZestimate{})

	intel, err := p.Analyze(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, intel.Score.Tier.AtLeast(model.TierHot))

	require.Len(t, crmClient.notes, 1)
	assert.Contains(t, crmClient.notes[0].Subject, string(intel.Score.Tier))
	assert.Contains(t, crmClient.notes[0].Body, "high_platform_score")
}

func TestAnalyzePropertyCached(t *testing.T) {
	crmClient := &fakeCRM{person: testPerson()}
	propClient := &fakeAttom{detail: &attom.PropertyDetail{Bedrooms: 3}}
	valClient := &fakeZestimate{val: &zestimate.Valuation{Zestimate: 500000}}
	p, _ := newTestPipeline(t, crmClient, &fakeCMA{}, propClient, valClient)

	_, err := p.Analyze(context.Background(), "42")
	require.NoError(t, err)
	_, err = p.Analyze(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, 1, propClient.calls)
	assert.Equal(t, 1, valClient.calls)
}

func TestAnalyzeProvidersDown(t *testing.T) {
	crmClient := &fakeCRM{person: testPerson()}
	propClient := &fakeAttom{err: assert.AnError}
	valClient := &fakeZestimate{err: assert.AnError}
	p, _ := newTestPipeline(t, crmClient, &fakeCMA{}, propClient, valClient)
	p.retry.Attempts = 1

	intel, err := p.Analyze(context.Background(), "42")
	require.NoError(t, err)

	assert.Nil(t, intel.Property)
	assert.Equal(t, "fallback-estimate", intel.Estimate.Source)
	assert.Equal(t, int64(480000), intel.Estimate.Center)
	assert.Greater(t, intel.Score.Composite, 0)
}

func TestAnalyzeMany(t *testing.T) {
	crmClient := &fakeCRM{person: testPerson()}
	propClient := &fakeAttom{detail: &attom.PropertyDetail{Bedrooms: 3}}
	valClient := &fakeZestimate{val: &zestimate.Valuation{Zestimate: 350000}}
	p, _ := newTestPipeline(t, crmClient, &fakeCMA{}, propClient, valClient)

	results, err := p.AnalyzeMany(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "42", r.Lead.ID) // fake always returns the same person
	}
	assert.Len(t, crmClient.updates, 3)
}

func TestGenerateCMA(t *testing.T) {
	crmClient := &fakeCRM{person: testPerson()}
	cmaClient := &fakeCMA{}
	propClient := &fakeAttom{detail: &attom.PropertyDetail{LivingArea: 2100}}
	valClient := &fakeZestimate{val: &zestimate.Valuation{Zestimate: 412300}}
	p, st := newTestPipeline(t, crmClient, cmaClient, propClient, valClient)

	out, err := p.GenerateCMA(context.Background(), "42")
	require.NoError(t, err)

	require.NotNil(t, out.Job)
	assert.NotEmpty(t, out.Job.Token)
	assert.Equal(t, "42", out.Job.LeadID)
	assert.Equal(t, int64(425000), out.Job.CenterValue)

	require.Len(t, cmaClient.requests, 1)
	req := cmaClient.requests[0]
	assert.Equal(t, "agent@sellsgroup.com", req.AgentEmail)
	assert.Equal(t, int64(425000), req.CenterPrice)
	assert.Equal(t, out.Defaults.RadiusMiles, req.SearchRadius)
	assert.Equal(t, out.Defaults.Comparables, req.CompCount)
	assert.Contains(t, req.WebhookURL, "token="+out.Job.Token)

	// The correlation record is retrievable for the webhook.
	job, err := st.GetCMAJobByToken(context.Background(), out.Job.Token)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.CMAJobRequested, job.Status)
}

func TestGenerateCMANoAddress(t *testing.T) {
	person := testPerson()
	person.Addresses = nil
	crmClient := &fakeCRM{person: person}
	p, _ := newTestPipeline(t, crmClient, &fakeCMA{}, &fakeAttom{}, &fakeZestimate{})

	_, err := p.GenerateCMA(context.Background(), "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no address")
}

func TestMonthsFromDays(t *testing.T) {
	assert.Equal(t, 6, monthsFromDays(180))
	assert.Equal(t, 9, monthsFromDays(270))
	assert.Equal(t, 3, monthsFromDays(90))
	assert.Equal(t, 3, monthsFromDays(61))
	assert.Equal(t, 1, monthsFromDays(0))
}

func TestWebhookWithToken(t *testing.T) {
	assert.Equal(t, "https://x.test/hook?token=abc", webhookWithToken("https://x.test/hook", "abc"))
	assert.Equal(t, "https://x.test/hook?a=1&token=abc", webhookWithToken("https://x.test/hook?a=1", "abc"))
	assert.Equal(t, "", webhookWithToken("", "abc"))
}
