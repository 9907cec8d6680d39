package fub

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

func TestGetPerson(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/people/123", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test-api-key", user)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"id": 123,
			"firstName": "Pat",
			"lastName": "Seller",
			"emails": [{"value": "pat@example.com", "isPrimary": 1}],
			"customWillowScore": "82",
			"customWillowPriority": "SUPER_HOT",
			"customFelloLeadScore": "90"
		}`))
	})

	p, err := c.GetPerson(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Pat", p.FirstName)
	assert.Equal(t, "pat@example.com", p.Emails[0].Value)
	assert.Equal(t, "82", p.Custom["customWillowScore"])
	assert.Equal(t, "SUPER_HOT", p.Custom["customWillowPriority"])
	assert.Equal(t, "90", p.Custom["customFelloLeadScore"])
}

func TestGetPersonAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessage":"not found"}`))
	})

	_, err := c.GetPerson(context.Background(), "999")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFindPersonByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/people", r.URL.Path)
			assert.Equal(t, "pat@example.com", r.URL.Query().Get("email"))

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"people":[{"id": 123, "firstName": "Pat"}]}`))
		})

		p, err := c.FindPersonByEmail(context.Background(), "pat@example.com")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Pat", p.FirstName)
	})

	t.Run("no match", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"people":[]}`))
		})

		p, err := c.FindPersonByEmail(context.Background(), "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestUpdatePerson(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/people/123", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "82", body["customWillowScore"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": 123}`))
	})

	err := c.UpdatePerson(context.Background(), "123", map[string]any{"customWillowScore": "82"})
	require.NoError(t, err)
}

func TestCreateNote(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notes", r.URL.Path)

		var note Note
		require.NoError(t, json.NewDecoder(r.Body).Decode(&note))
		assert.Equal(t, "CMA Report Ready", note.Subject)

		note.ID = "42"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(note)
	})

	created, err := c.CreateNote(context.Background(), Note{
		PersonID: "123",
		Subject:  "CMA Report Ready",
		Body:     "Report: https://cloudcma.example/r/1",
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("42"), created.ID)
}

func TestCreateTask(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)

		var task Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&task))
		assert.Equal(t, "Call about new CMA", task.Name)

		task.ID = "7"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(task)
	})

	created, err := c.CreateTask(context.Background(), Task{
		PersonID: "123",
		Name:     "Call about new CMA",
		DueDate:  "2026-03-20",
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), created.ID)
}
