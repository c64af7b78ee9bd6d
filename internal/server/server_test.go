package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/connectivity"
	"github.com/GenAmed/pointage/internal/location"
	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/server"
	"github.com/GenAmed/pointage/internal/storage"
	"github.com/GenAmed/pointage/internal/syncer"
	"github.com/GenAmed/pointage/internal/tracker"
)

type alwaysOKRemote struct{}

func (alwaysOKRemote) Push(ctx context.Context, entry model.TimeEntry) error { return nil }

type testAgent struct {
	queue   *storage.MemStore
	monitor *connectivity.StaticMonitor
	srv     *server.Server
	http    *httptest.Server
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	queue := storage.NewMemStore()
	monitor := connectivity.NewStaticMonitor(true)
	log := zap.NewNop()
	sync := syncer.New(queue, alwaysOKRemote{}, log)
	hub := server.NewHub(log)

	trk, err := tracker.New(tracker.Config{
		UserID:   "worker-1",
		Queue:    queue,
		Location: &location.StaticProvider{Coordinates: model.Coordinates{Latitude: 47.2, Longitude: 6.0}},
		Monitor:  monitor,
		Notifier: hub,
	})
	require.NoError(t, err)

	s := server.New(trk, sync, monitor, hub, log)
	s.Start()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return &testAgent{queue: queue, monitor: monitor, srv: s, http: ts}
}

func (a *testAgent) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(a.http.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestPunchFlowOverHTTP(t *testing.T) {
	a := newTestAgent(t)

	resp := a.post(t, "/api/track/start", map[string]string{"worksite_id": "site-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[model.TimeEntry](t, resp)
	assert.Equal(t, "site-1", entry.WorksiteID)
	assert.Equal(t, model.SyncPending, entry.SyncStatus)

	resp = a.post(t, "/api/break/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Second break start is an invalid transition.
	resp = a.post(t, "/api/break/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = a.post(t, "/api/break/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = a.post(t, "/api/track/stop", map[string]string{"comment": "done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decode[model.TimeEntry](t, resp)
	assert.NotNil(t, closed.EndTime)
	assert.Len(t, closed.Breaks, 1)
}

func TestStatusReportsPendingCount(t *testing.T) {
	a := newTestAgent(t)

	resp := a.post(t, "/api/track/start", map[string]string{"worksite_id": "site-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(a.http.URL + "/api/status")
	require.NoError(t, err)
	status := decode[struct {
		State        string           `json:"state"`
		Entry        *model.TimeEntry `json:"entry"`
		PendingCount int              `json:"pending_count"`
		Online       bool             `json:"online"`
	}](t, resp)

	assert.Equal(t, "tracking", status.State)
	require.NotNil(t, status.Entry)
	assert.Equal(t, 1, status.PendingCount)
	assert.True(t, status.Online)
}

func TestExplicitSyncDrainsQueue(t *testing.T) {
	a := newTestAgent(t)

	resp := a.post(t, "/api/track/start", map[string]string{"worksite_id": "site-1"})
	resp.Body.Close()
	resp = a.post(t, "/api/track/stop", nil)
	resp.Body.Close()

	resp = a.post(t, "/api/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[syncer.Result](t, resp)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 0, res.Failed)

	entries, err := a.queue.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.SyncSynced, entries[0].SyncStatus)
}

func TestStartWithoutWorksiteRejected(t *testing.T) {
	a := newTestAgent(t)
	resp := a.post(t, "/api/track/start", map[string]string{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "worksite")
}

// Notify must return immediately even when nothing drains the event queue;
// a punch holds the tracker's lock while notifying and must never wait on a
// websocket write.
func TestHubNotifyNeverBlocks(t *testing.T) {
	hub := server.NewHub(zap.NewNop())
	hub.Close() // broadcast loop stopped: the queue has no consumer

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Notify(tracker.Event{Type: tracker.EventClockIn, EntryID: "e1"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with an undrained event queue")
	}
}

func TestEventFeedBroadcastsTransitions(t *testing.T) {
	a := newTestAgent(t)

	wsURL := "ws" + strings.TrimPrefix(a.http.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The hub registers the client just after the handshake response.
	time.Sleep(50 * time.Millisecond)

	resp := a.post(t, "/api/track/start", map[string]string{"worksite_id": "site-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event tracker.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, tracker.EventClockIn, event.Type)
	assert.Equal(t, "site-1", event.WorksiteID)
}
