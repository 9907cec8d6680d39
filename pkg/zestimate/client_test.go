package zestimate

import (
	"context"
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
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestGetValuation(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zestimates", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "12 Main St, Poughkeepsie, NY 12601", r.URL.Query().Get("address"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"bundle":[{"address":"12 Main St","zestimate":412300}]}`))
	})

	v, err := c.GetValuation(context.Background(), "12 Main St, Poughkeepsie, NY 12601")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(412_300), v.Zestimate)
}

func TestGetValuationMiss(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"bundle":[]}`))
	})

	v, err := c.GetValuation(context.Background(), "1 Nowhere Ln")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGetValuationAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"bad token"}`))
	})

	_, err := c.GetValuation(context.Background(), "12 Main St")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
