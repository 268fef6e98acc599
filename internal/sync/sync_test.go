package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lifelog-dev/lifelog/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestQueue(t *testing.T, mode Mode) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync_queue.db")
	q, err := OpenQueue(path, mode)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q, path
}

func TestQueue_FIFOWithinTable(t *testing.T) {
	q, _ := openTestQueue(t, ModeClient)
	ctx := context.Background()

	// Given: three enqueued changes
	for _, payload := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if err := q.Enqueue(ctx, "tasks", OperationUpdate, json.RawMessage(payload)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// When: pending entries are read
	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}

	// Then: they come back in insertion order
	if len(pending) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(pending))
	}
	for i, entry := range pending {
		var body struct{ N int }
		if err := json.Unmarshal(entry.Payload, &body); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if body.N != i+1 {
			t.Errorf("entry %d out of order: n=%d", i, body.N)
		}
	}
}

func TestQueue_SurvivesReopen(t *testing.T) {
	q, path := openTestQueue(t, ModeClient)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "trackers", OperationCreate, json.RawMessage(`{"title":"water"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// When: the queue file is reopened, as after a process restart
	reopened, err := OpenQueue(path, ModeClient)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 entry after reopen, got %d", n)
	}
}

func TestQueue_EnqueueNoOpOutsideClientMode(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []Mode{ModeLocal, ModeHost} {
		q, _ := openTestQueue(t, mode)
		if err := q.Enqueue(ctx, "tasks", OperationCreate, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("%s enqueue: %v", mode, err)
		}
		n, _ := q.Len(ctx)
		if n != 0 {
			t.Errorf("%s mode queued %d entries, want 0", mode, n)
		}
	}
}

func TestQueue_RejectsUnknownTable(t *testing.T) {
	q, _ := openTestQueue(t, ModeClient)
	err := q.Enqueue(context.Background(), "environment_data", OperationCreate, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for non-synced table")
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"local", ModeLocal, true},
		{"host", ModeHost, true},
		{"client", ModeClient, true},
		{"", "", false},
		{"server", "", false},
	} {
		got, err := ParseMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseMode(%q) succeeded, want error", tc.in)
		}
	}
}

// fakeHost is a minimal stand-in for the host's sync endpoints. Tables in
// rejected answer pushes with a 500; failures[table] rejects that many
// pushes before accepting.
type fakeHost struct {
	srv      *httptest.Server
	pushes   []string // "table/operation" in arrival order
	rejected map[string]bool
	failures map[string]int
	records  map[string][]json.RawMessage
	fetches  atomic.Int32
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	f := &fakeHost{
		rejected: make(map[string]bool),
		failures: make(map[string]int),
		records:  make(map[string][]json.RawMessage),
	}
	mux := http.NewServeMux()
	handlePush := func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/api/v1/sync/")
		if f.rejected[table] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if f.failures[table] > 0 {
			f.failures[table]--
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var req PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.pushes = append(f.pushes, table+"/"+req.Operation)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PushResponse{Status: "success"})
	}
	handleFetch := func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		records := f.records[strings.TrimPrefix(r.URL.Path, "/api/v1/sync/")]
		if records == nil {
			records = []json.RawMessage{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
	mux.HandleFunc("/api/v1/sync/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlePush(w, r)
		case http.MethodGet:
			handleFetch(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestEngine(t *testing.T, host *fakeHost) (*Engine, *Queue, *store.WatermarkStore) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "lifelog.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	q, _ := openTestQueue(t, ModeClient)
	client := NewClient(host.srv.URL, "test-token")
	engine := NewEngine(ModeClient, q, client, db.Watermarks(), discardLogger())
	return engine, q, db.Watermarks()
}

func TestEngine_DrainPushesAndDeletes(t *testing.T) {
	host := newFakeHost(t)
	engine, q, _ := newTestEngine(t, host)
	ctx := context.Background()

	// Given: queued changes across two tables
	q.Enqueue(ctx, "tasks", OperationCreate, json.RawMessage(`{"uid":"a"}`))
	q.Enqueue(ctx, "tasks", OperationUpdate, json.RawMessage(`{"uid":"a"}`))
	q.Enqueue(ctx, "trackers", OperationCreate, json.RawMessage(`{"uid":"b"}`))

	// When: the queue drains
	engine.EnsureDrained(ctx)

	// Then: everything reached the host in order and the queue is empty
	want := []string{"tasks/create", "tasks/update", "trackers/create"}
	if len(host.pushes) != len(want) {
		t.Fatalf("expected %d pushes, got %v", len(want), host.pushes)
	}
	for i := range want {
		if host.pushes[i] != want[i] {
			t.Errorf("push %d: got %s, want %s", i, host.pushes[i], want[i])
		}
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected empty queue, %d remain", n)
	}
}

func TestEngine_DrainFailureStopsTableButNotOthers(t *testing.T) {
	host := newFakeHost(t)
	host.rejected["tasks"] = true
	engine, q, _ := newTestEngine(t, host)
	ctx := context.Background()

	q.Enqueue(ctx, "tasks", OperationCreate, json.RawMessage(`{"uid":"a"}`))
	q.Enqueue(ctx, "tasks", OperationUpdate, json.RawMessage(`{"uid":"a"}`))
	q.Enqueue(ctx, "trackers", OperationCreate, json.RawMessage(`{"uid":"b"}`))

	engine.EnsureDrained(ctx)

	// Then: the healthy table drained, the failing table kept both entries
	if len(host.pushes) != 1 || host.pushes[0] != "trackers/create" {
		t.Fatalf("expected only trackers push, got %v", host.pushes)
	}
	pending, _ := q.Pending(ctx)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	for _, entry := range pending {
		if entry.TableName != "tasks" {
			t.Errorf("unexpected pending entry for %s", entry.TableName)
		}
	}

	// When: the host recovers and the queue drains again
	host.rejected["tasks"] = false
	engine.EnsureDrained(ctx)
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected empty queue after recovery, %d remain", n)
	}
	if got := host.pushes[len(host.pushes)-2:]; got[0] != "tasks/create" || got[1] != "tasks/update" {
		t.Errorf("retried pushes out of order: %v", got)
	}
}

func TestEngine_DrainDeliversAfterRepeatedRejection(t *testing.T) {
	host := newFakeHost(t)
	host.failures["tasks"] = 2
	engine, q, _ := newTestEngine(t, host)
	ctx := context.Background()

	q.Enqueue(ctx, "tasks", OperationCreate, json.RawMessage(`{"uid":"a"}`))

	// When: the host rejects the first two attempts
	engine.EnsureDrained(ctx)
	engine.EnsureDrained(ctx)

	// Then: the entry is still queued, not lost
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("entry dropped after rejection: %d queued", n)
	}
	if len(host.pushes) != 0 {
		t.Fatalf("rejected pushes recorded as delivered: %v", host.pushes)
	}

	// When: the third attempt is accepted
	engine.EnsureDrained(ctx)

	// Then: it was delivered exactly once and dequeued
	if len(host.pushes) != 1 || host.pushes[0] != "tasks/create" {
		t.Fatalf("expected single delivery, got %v", host.pushes)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("delivered entry still queued: %d", n)
	}
}

func TestEngine_PullAppliesAndAdvancesWatermark(t *testing.T) {
	host := newFakeHost(t)
	host.records["tasks"] = []json.RawMessage{
		json.RawMessage(`{"uid":"a"}`),
		json.RawMessage(`{"uid":"b"}`),
	}
	engine, _, watermarks := newTestEngine(t, host)
	ctx := context.Background()

	var applied []string
	before := time.Now()
	err := engine.Pull(ctx, "tasks", func(_ context.Context, record json.RawMessage) error {
		var body struct{ UID string }
		json.Unmarshal(record, &body)
		applied = append(applied, body.UID)
		return nil
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(applied) != 2 || applied[0] != "a" || applied[1] != "b" {
		t.Fatalf("wrong applies: %v", applied)
	}
	mark, ok, err := watermarks.LastSynced(ctx, "tasks")
	if err != nil || !ok {
		t.Fatalf("watermark missing after pull: %v", err)
	}
	if mark.Before(before) {
		t.Errorf("watermark %v predates pull start %v", mark, before)
	}
}

func TestEngine_PullHoldsWatermarkOnApplyFailure(t *testing.T) {
	host := newFakeHost(t)
	host.records["tasks"] = []json.RawMessage{
		json.RawMessage(`{"uid":"a"}`),
		json.RawMessage(`{"uid":"bad"}`),
	}
	engine, _, watermarks := newTestEngine(t, host)
	ctx := context.Background()

	err := engine.Pull(ctx, "tasks", func(_ context.Context, record json.RawMessage) error {
		var body struct{ UID string }
		json.Unmarshal(record, &body)
		if body.UID == "bad" {
			return errors.New("apply failed")
		}
		return nil
	})
	// Apply failures do not surface; local reads continue.
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if _, ok, _ := watermarks.LastSynced(ctx, "tasks"); ok {
		t.Error("watermark advanced past a failed apply")
	}
}

func TestEngine_PullSwallowsTransportFailure(t *testing.T) {
	host := newFakeHost(t)
	engine, _, watermarks := newTestEngine(t, host)
	host.srv.Close()
	ctx := context.Background()

	err := engine.Pull(ctx, "tasks", func(context.Context, json.RawMessage) error {
		t.Fatal("apply called with host down")
		return nil
	})
	if err != nil {
		t.Fatalf("expected transport failure to be swallowed, got %v", err)
	}
	if _, ok, _ := watermarks.LastSynced(ctx, "tasks"); ok {
		t.Error("watermark advanced with host down")
	}
}

func TestEngine_PullNoOpOutsideClientMode(t *testing.T) {
	host := newFakeHost(t)
	engine, _, _ := newTestEngine(t, host)
	engine.mode = ModeLocal

	err := engine.Pull(context.Background(), "tasks", func(context.Context, json.RawMessage) error {
		t.Fatal("apply called in local mode")
		return nil
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if host.fetches.Load() != 0 {
		t.Error("fetch issued in local mode")
	}
}

func TestEngine_PullRejectsUnknownTable(t *testing.T) {
	host := newFakeHost(t)
	engine, _, _ := newTestEngine(t, host)

	err := engine.Pull(context.Background(), "nope", func(context.Context, json.RawMessage) error { return nil })
	if !errors.Is(err, store.ErrUnknownSyncTable) {
		t.Fatalf("expected ErrUnknownSyncTable, got %v", err)
	}
}
