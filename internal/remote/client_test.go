package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/remote"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
}

// fakeBackend emulates the REST store: lookups answer from known external
// IDs, writes are recorded.
type fakeBackend struct {
	known    map[string]bool
	requests []recordedRequest
	failNext bool
}

func (b *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if r.Body != nil {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			rec.body = body
		}
		b.requests = append(b.requests, rec)

		if b.failNext {
			b.failNext = false
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}

		switch r.Method {
		case http.MethodGet:
			// PostgREST-style filter value: "eq.<external id>".
			id := r.URL.Query().Get("external_id")
			if b.known[id] {
				w.Write([]byte(`[{"external_id":"x"}]`))
				return
			}
			w.Write([]byte(`[]`))
		case http.MethodPost:
			if extID, ok := rec.body["external_id"].(string); ok {
				b.known["eq."+extID] = true
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
		}
	})
}

func entryFixture() model.TimeEntry {
	return model.TimeEntry{
		ID:         "20260302-080015-ab3k9",
		UserID:     "worker-1",
		WorksiteID: "site-1",
		Date:       "2026-03-02",
		StartTime:  "08:00",
		SyncStatus: model.SyncPending,
	}
}

func TestPushCreatesWhenUnknown(t *testing.T) {
	backend := &fakeBackend{known: map[string]bool{}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	c := remote.NewClient(srv.URL, "key-123", "device-1", srv.Client())
	err := c.Push(context.Background(), entryFixture())
	require.NoError(t, err)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, http.MethodGet, backend.requests[0].method)
	assert.Equal(t, http.MethodPost, backend.requests[1].method)
	assert.Equal(t, "/rest/v1/time_entries", backend.requests[1].path)
	assert.Equal(t, "20260302-080015-ab3k9", backend.requests[1].body["external_id"])
	assert.Equal(t, "device-1", backend.requests[1].body["device_id"])
}

func TestPushUpdatesWhenKnown(t *testing.T) {
	backend := &fakeBackend{known: map[string]bool{"eq.20260302-080015-ab3k9": true}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	c := remote.NewClient(srv.URL, "key-123", "device-1", srv.Client())
	e := entryFixture()
	end := "17:00"
	e.EndTime = &end
	err := c.Push(context.Background(), e)
	require.NoError(t, err)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, http.MethodPatch, backend.requests[1].method)
	assert.Contains(t, backend.requests[1].query, "external_id=eq.20260302-080015-ab3k9")
	assert.Equal(t, "17:00", backend.requests[1].body["end_time"])
}

func TestPushReportsBackendFailure(t *testing.T) {
	backend := &fakeBackend{known: map[string]bool{}, failNext: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	c := remote.NewClient(srv.URL, "key-123", "device-1", srv.Client())
	err := c.Push(context.Background(), entryFixture())
	require.Error(t, err)
}

func TestHealthURL(t *testing.T) {
	c := remote.NewClient("https://backend.example.com", "", "", nil)
	assert.Equal(t, "https://backend.example.com/auth/v1/health", c.HealthURL())
}
