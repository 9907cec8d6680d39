package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/willow/internal/crm"
	"github.com/sells-group/willow/internal/intel"
	"github.com/sells-group/willow/internal/model"
	"github.com/sells-group/willow/internal/scoring"
	"github.com/sells-group/willow/internal/store"
	"github.com/sells-group/willow/pkg/attom"
	"github.com/sells-group/willow/pkg/cloudcma"
	"github.com/sells-group/willow/pkg/fub"
	"github.com/sells-group/willow/pkg/zestimate"
)

type stubCRM struct {
	person *fub.Person
}

func (s *stubCRM) GetPerson(_ context.Context, _ string) (*fub.Person, error) {
	return s.person, nil
}

func (s *stubCRM) FindPersonByEmail(_ context.Context, _ string) (*fub.Person, error) {
	return s.person, nil
}

func (s *stubCRM) UpdatePerson(_ context.Context, _ string, _ map[string]any) error { return nil }

func (s *stubCRM) CreateNote(_ context.Context, n fub.Note) (*fub.Note, error) { return &n, nil }

func (s *stubCRM) CreateTask(_ context.Context, tk fub.Task) (*fub.Task, error) { return &tk, nil }

type stubCMA struct{}

func (stubCMA) RequestReport(_ context.Context, _ cloudcma.ReportRequest) (*cloudcma.ReportResponse, error) {
	return &cloudcma.ReportResponse{ID: "rpt-1", Status: "pending"}, nil
}

func (stubCMA) GetReport(_ context.Context, id string) (*cloudcma.Report, error) {
	return &cloudcma.Report{ID: id}, nil
}

type stubAttom struct{}

func (stubAttom) GetPropertyDetail(_ context.Context, _, _ string) (*attom.PropertyDetail, error) {
	return nil, nil
}

type stubZestimate struct{}

func (stubZestimate) GetValuation(_ context.Context, _ string) (*zestimate.Valuation, error) {
	return nil, nil
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	crmClient := &stubCRM{person: &fub.Person{
		ID:        "7",
		FirstName: "Ira",
		Addresses: []fub.Address{{Street: "1 Elm St", City: "Kingston", State: "NY", Type: "home"}},
	}}
	pipe := intel.New(crmClient, stubCMA{}, stubAttom{}, stubZestimate{}, st,
		scoring.NewEngine(scoring.DefaultConfig()), intel.Config{
			AgentEmail:       "agent@example.com",
			WebhookURL:       "https://willow.example.com/webhook/cloudcma",
			PropertyCacheTTL: time.Hour,
		})

	return &appEnv{
		Store:    st,
		CRM:      crmClient,
		Pipeline: pipe,
		Webhook:  crm.NewWebhookProcessor(st, crmClient),
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newRouter(context.Background(), newTestEnv(t), nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestIntelligenceEndpoint(t *testing.T) {
	r := newRouter(context.Background(), newTestEnv(t), nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/intelligence/7", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Lead  model.LeadRecord `json:"lead"`
		Score struct {
			Composite int    `json:"composite"`
			Tier      string `json:"tier"`
		} `json:"score"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "7", body.Lead.ID)
	assert.NotEmpty(t, body.Score.Tier)
}

func TestCMAGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	r := newRouter(context.Background(), env, nil)

	payload, _ := json.Marshal(map[string]string{"lead_id": "7"})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/cma/generate", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var body struct {
		Job model.CMAJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Job.Token)

	job, err := env.Store.GetCMAJobByToken(context.Background(), body.Job.Token)
	require.NoError(t, err)
	require.NotNil(t, job)
}

func TestCMAGenerateEndpoint_MissingLeadID(t *testing.T) {
	r := newRouter(context.Background(), newTestEnv(t), nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/cma/generate", bytes.NewReader([]byte(`{}`))))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCloudCMAWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t)
	r := newRouter(context.Background(), env, nil)

	job, err := env.Store.CreateCMAJob(context.Background(), model.CMAJob{
		Token: "tok-1", LeadID: "7", Address: "1 Elm St, Kingston, NY",
	})
	require.NoError(t, err)

	payload, _ := json.Marshal(cloudcma.WebhookPayload{
		ID:      "evt-1",
		Action:  "published",
		EditURL: "https://cloudcma.com/cmas/1/edit",
		PDFURL:  "https://cloudcma.com/cmas/1.pdf",
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/cloudcma?token=tok-1", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "processed")

	// Redelivery answers 200 with the duplicate status.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/cloudcma?token=tok-1", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "duplicate")

	got, err := env.Store.GetCMAJobByToken(context.Background(), job.Token)
	require.NoError(t, err)
	assert.Equal(t, model.CMAJobCompleted, got.Status)
}

func TestCRMWebhookEndpoint(t *testing.T) {
	r := newRouter(context.Background(), newTestEnv(t), nil)

	payload := []byte(`{"personId": 7}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/crm/person-updated", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/crm/person-updated", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
