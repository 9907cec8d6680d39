package cloudcma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL))
}

func TestRequestReport(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cmas", r.URL.Path)
		assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))

		var req ReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12 Main St", req.Address)
		assert.Equal(t, int64(425_000), req.CenterPrice)
		assert.Equal(t, 5.0, req.SearchRadius)
		assert.Contains(t, req.WebhookURL, "token=tok-1")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(ReportResponse{
			ID:      "cma-900",
			Status:  "pending",
			EditURL: "https://cloudcma.example/edit/900",
		})
	})

	resp, err := c.RequestReport(context.Background(), ReportRequest{
		AgentEmail:   "agent@example.com",
		Address:      "12 Main St",
		CenterPrice:  425_000,
		SearchRadius: 5,
		MonthsBack:   6,
		CompCount:    8,
		WebhookURL:   "https://willow.example/webhook/cloudcma?token=tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cma-900", resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestRequestReportAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"address required"}`))
	})

	_, err := c.RequestReport(context.Background(), ReportRequest{})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestGetReport(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cmas/cma-900", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Report{
			ID:        "cma-900",
			Status:    "complete",
			PDFURL:    "https://cloudcma.example/pdf/900",
			ViewCount: 3,
		})
	})

	report, err := c.GetReport(context.Background(), "cma-900")
	require.NoError(t, err)
	assert.Equal(t, "complete", report.Status)
	assert.Equal(t, 3, report.ViewCount)
}
