package syncer_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/storage"
	"github.com/GenAmed/pointage/internal/syncer"
)

// fakeRemote records pushes and fails the IDs it is told to.
type fakeRemote struct {
	fail   map[string]bool
	pushed []string
}

func (f *fakeRemote) Push(ctx context.Context, entry model.TimeEntry) error {
	f.pushed = append(f.pushed, entry.ID)
	if f.fail[entry.ID] {
		return context.DeadlineExceeded
	}
	return nil
}

func pendingEntry(id string) model.TimeEntry {
	return model.TimeEntry{
		ID:         id,
		UserID:     "worker-1",
		WorksiteID: "site-1",
		Date:       "2026-03-02",
		StartTime:  "08:00",
		SyncStatus: model.SyncPending,
	}
}

func TestSyncPendingMarksSynced(t *testing.T) {
	queue := storage.NewMemStore()
	if err := queue.Upsert(pendingEntry("e1")); err != nil {
		t.Fatal(err)
	}
	remote := &fakeRemote{}
	s := syncer.New(queue, remote, zap.NewNop())

	res, err := s.SyncPending(context.Background())
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if !res.Complete() || res.Synced != 1 {
		t.Errorf("result = %+v, want 1 synced, complete", res)
	}

	entries, _ := queue.List()
	if entries[0].SyncStatus != model.SyncSynced {
		t.Errorf("SyncStatus = %q, want synced", entries[0].SyncStatus)
	}
}

func TestSyncPendingIdempotent(t *testing.T) {
	queue := storage.NewMemStore()
	if err := queue.Upsert(pendingEntry("e1")); err != nil {
		t.Fatal(err)
	}
	remote := &fakeRemote{}
	s := syncer.New(queue, remote, zap.NewNop())

	if _, err := s.SyncPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := s.SyncPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// The second call must neither push again nor touch sync status.
	if len(remote.pushed) != 1 {
		t.Errorf("pushed %d times across two syncs, want 1", len(remote.pushed))
	}
	if !res.Complete() || res.Synced != 0 {
		t.Errorf("second result = %+v, want empty no-op", res)
	}
}

func TestSyncPendingPartialBatch(t *testing.T) {
	queue := storage.NewMemStore()
	if err := queue.Upsert(pendingEntry("e1")); err != nil {
		t.Fatal(err)
	}
	if err := queue.Upsert(pendingEntry("e2")); err != nil {
		t.Fatal(err)
	}
	remote := &fakeRemote{fail: map[string]bool{"e2": true}}
	s := syncer.New(queue, remote, zap.NewNop())

	res, err := s.SyncPending(context.Background())
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if res.Complete() {
		t.Error("result reports complete despite a failure")
	}
	if res.Synced != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1 synced / 1 failed", res)
	}

	entries, _ := queue.List()
	byID := map[string]model.SyncStatus{}
	for _, e := range entries {
		byID[e.ID] = e.SyncStatus
	}
	if byID["e1"] != model.SyncSynced {
		t.Errorf("e1 = %q, want synced (partial progress preserved)", byID["e1"])
	}
	if byID["e2"] != model.SyncPending {
		t.Errorf("e2 = %q, want pending", byID["e2"])
	}

	// A retry only touches the failed entry.
	remote.fail = nil
	res, err = s.SyncPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete() || res.Synced != 1 {
		t.Errorf("retry result = %+v, want 1 synced", res)
	}
}

func TestSyncPendingEmptyQueue(t *testing.T) {
	s := syncer.New(storage.NewMemStore(), &fakeRemote{}, zap.NewNop())
	res, err := s.SyncPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete() {
		t.Errorf("empty queue result = %+v, want complete", res)
	}
}

func TestPendingCount(t *testing.T) {
	queue := storage.NewMemStore()
	synced := pendingEntry("e1")
	synced.SyncStatus = model.SyncSynced
	if err := queue.Upsert(synced); err != nil {
		t.Fatal(err)
	}
	if err := queue.Upsert(pendingEntry("e2")); err != nil {
		t.Fatal(err)
	}

	s := syncer.New(queue, &fakeRemote{}, zap.NewNop())
	n, err := s.PendingCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("PendingCount = %d, want 1", n)
	}
}
