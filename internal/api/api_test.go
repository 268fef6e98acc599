package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/repository"
	"github.com/lifelog-dev/lifelog/internal/store"
	lifesync "github.com/lifelog-dev/lifelog/internal/sync"
)

const testAdminKey = "test-admin-key"

type testServer struct {
	srv   *httptest.Server
	db    *store.DB
	token string // device bearer token, set by pairDevice
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "lifelog.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	queue, err := lifesync.OpenQueue(filepath.Join(dir, "sync_queue.db"), lifesync.ModeHost)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := lifesync.NewEngine(lifesync.ModeHost, queue, nil, db.Watermarks(), logger)
	repos := repository.New(lifesync.ModeHost, db, queue, engine, logger)

	handler := NewHandler(repos, db.Devices(), testAdminKey)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, db: db}
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+"/api/v1"+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// pairDevice walks the real pairing flow and stores the issued token.
func (ts *testServer) pairDevice(t *testing.T, name string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/pair/start", testAdminKey, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("pair start: %d", resp.StatusCode)
	}
	started := decodeBody[map[string]string](t, resp)

	resp = ts.do(t, http.MethodPost, "/pair/complete", "", map[string]string{
		"code":        started["code"],
		"device_name": name,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("pair complete: %d", resp.StatusCode)
	}
	completed := decodeBody[map[string]string](t, resp)
	if completed["device_id"] == "" || completed["token"] == "" {
		t.Fatalf("pairing response incomplete: %v", completed)
	}
	ts.token = completed["token"]
	return completed["token"]
}

func TestHealth_NoAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestPairing_FlowIssuesWorkingToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "laptop")

	// Then: the token opens the device routes
	resp := ts.do(t, http.MethodGet, "/tasks", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authed request: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// And: the device shows up in the admin listing
	resp = ts.do(t, http.MethodGet, "/devices", testAdminKey, nil)
	devices := decodeBody[[]map[string]any](t, resp)
	if len(devices) != 1 || devices[0]["name"] != "laptop" {
		t.Fatalf("unexpected device listing: %v", devices)
	}
}

func TestPairing_CodeIsSingleUse(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/pair/start", testAdminKey, nil)
	started := decodeBody[map[string]string](t, resp)

	body := map[string]string{"code": started["code"], "device_name": "phone"}
	first := ts.do(t, http.MethodPost, "/pair/complete", "", body)
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first redemption: %d", first.StatusCode)
	}

	second := ts.do(t, http.MethodPost, "/pair/complete", "", body)
	second.Body.Close()
	if second.StatusCode != http.StatusForbidden {
		t.Errorf("reused code: got %d, want 403", second.StatusCode)
	}
}

func TestAuth_Rejections(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct {
		name   string
		method string
		path   string
		bearer string
		want   int
	}{
		{"device route without token", http.MethodGet, "/tasks", "", http.StatusUnauthorized},
		{"device route with bad token", http.MethodGet, "/tasks", "not-a-token", http.StatusUnauthorized},
		{"admin route without key", http.MethodPost, "/pair/start", "", http.StatusUnauthorized},
		{"admin route with device-grade key", http.MethodPost, "/pair/start", "wrong", http.StatusUnauthorized},
	} {
		resp := ts.do(t, tc.method, tc.path, tc.bearer, nil)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestAuth_RevokedDeviceLosesAccess(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "old-phone")

	resp := ts.do(t, http.MethodGet, "/devices", testAdminKey, nil)
	devices := decodeBody[[]map[string]any](t, resp)
	id, _ := devices[0]["id"].(string)
	if id == "" {
		t.Fatalf("device id missing: %v", devices)
	}

	resp = ts.do(t, http.MethodDelete, "/devices/"+id, testAdminKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/tasks", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("revoked token still works: %d", resp.StatusCode)
	}
}

func TestTasks_RESTLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "laptop")

	// Create
	resp := ts.do(t, http.MethodPost, "/tasks", token, map[string]any{
		"title":   "ship release",
		"project": "lifelog",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	created := decodeBody[models.Task](t, resp)
	if created.ID == 0 || created.UID == "" {
		t.Fatalf("identity missing on created task: %+v", created)
	}

	// List with filter
	resp = ts.do(t, http.MethodGet, "/tasks?project=lifelog", token, nil)
	listed := decodeBody[[]models.Task](t, resp)
	if len(listed) != 1 || listed[0].Title != "ship release" {
		t.Fatalf("list: %+v", listed)
	}
	resp = ts.do(t, http.MethodGet, "/tasks?project=other", token, nil)
	if empty := decodeBody[[]models.Task](t, resp); len(empty) != 0 {
		t.Fatalf("filter leaked: %+v", empty)
	}

	// Complete
	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/done", created.ID), token, nil)
	done := decodeBody[models.Task](t, resp)
	if done.Status != models.StatusDone || done.End == nil {
		t.Fatalf("done: %+v", done)
	}

	// Fetch by UID
	resp = ts.do(t, http.MethodGet, "/tasks/uid/"+created.UID, token, nil)
	byUID := decodeBody[models.Task](t, resp)
	if byUID.ID != created.ID {
		t.Fatalf("uid fetch: %+v", byUID)
	}

	// Delete, then the row is gone
	resp = ts.do(t, http.MethodDelete, fmt.Sprintf("/tasks/%d", created.ID), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d", created.ID), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted task fetch: got %d, want 404", resp.StatusCode)
	}
}

func TestTasks_ValidationProblem(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "laptop")

	resp := ts.do(t, http.MethodPost, "/tasks", token, map[string]any{"title": "   "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank title: got %d, want 422", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type: %q", ct)
	}
	var problem Problem
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Status != http.StatusUnprocessableEntity || problem.Detail == "" {
		t.Errorf("unexpected problem body: %+v", problem)
	}
}

func TestTasks_UpdateByUIDValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "laptop")

	resp := ts.do(t, http.MethodPost, "/tasks", token, map[string]any{"title": "stable title"})
	created := decodeBody[models.Task](t, resp)

	// A blank title is refused on the uid route too
	resp = ts.do(t, http.MethodPut, "/tasks/uid/"+created.UID, token, map[string]any{"title": "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank title via uid route: got %d, want 422", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/tasks/uid/"+created.UID, token, nil)
	unchanged := decodeBody[models.Task](t, resp)
	if unchanged.Title != "stable title" {
		t.Errorf("rejected update still applied: %q", unchanged.Title)
	}
}

func TestSync_PushThenChangesRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "phone")

	remote := &models.Task{Title: "pushed from phone"}
	remote.UID = uuid.NewString()
	remote.Touch(time.Now())
	snapshot, _ := json.Marshal(remote)

	// When: a device pushes a create
	resp := ts.do(t, http.MethodPost, "/sync/tasks", token, lifesync.PushRequest{
		Operation: lifesync.OperationCreate,
		Data:      snapshot,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("push: %d", resp.StatusCode)
	}
	ack := decodeBody[lifesync.PushResponse](t, resp)
	if ack.Status != "success" {
		t.Fatalf("push ack: %+v", ack)
	}

	// Then: the change comes back on a pull
	resp = ts.do(t, http.MethodGet, "/sync/tasks", token, nil)
	changes := decodeBody[[]models.Task](t, resp)
	if len(changes) != 1 || changes[0].UID != remote.UID {
		t.Fatalf("changes: %+v", changes)
	}

	// And: a since past the change returns an empty list, not null
	since := models.FormatTime(time.Now().Add(time.Hour))
	resp = ts.do(t, http.MethodGet, "/sync/tasks?since="+since, token, nil)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if string(bytes.TrimSpace(raw)) != "[]" {
		t.Errorf("expected empty JSON array, got %q", raw)
	}
}

func TestSync_PushedDeleteTombstones(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "phone")

	remote := &models.Task{Title: "short lived"}
	remote.UID = uuid.NewString()
	remote.Touch(time.Now())
	snapshot, _ := json.Marshal(remote)
	ts.do(t, http.MethodPost, "/sync/tasks", token, lifesync.PushRequest{
		Operation: lifesync.OperationCreate, Data: snapshot,
	}).Body.Close()

	tomb, _ := json.Marshal(lifesync.Tombstone{UID: remote.UID, Deleted: true, UpdatedAt: time.Now()})
	resp := ts.do(t, http.MethodPost, "/sync/tasks", token, lifesync.PushRequest{
		Operation: lifesync.OperationDelete, Data: tomb,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("push delete: %d", resp.StatusCode)
	}

	// The tombstone still travels on pulls so other devices converge
	resp = ts.do(t, http.MethodGet, "/sync/tasks", token, nil)
	changes := decodeBody[[]models.Task](t, resp)
	if len(changes) != 1 || !changes[0].Deleted {
		t.Fatalf("expected tombstone in changes: %+v", changes)
	}

	// But the REST surface reads it as gone
	got, err := ts.db.Tasks().GetByUID(context.Background(), remote.UID)
	if err != nil || !got.Deleted {
		t.Errorf("store state wrong: %+v %v", got, err)
	}
}

func TestSync_PushRejectsIncompleteSnapshot(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "phone")

	// A sum goal without its amount must be refused, not stored
	g := &models.Goal{
		TrackerUID: uuid.NewString(),
		Title:      "sleep more",
		Kind:       models.GoalSum,
		Period:     "day",
	}
	g.UID = uuid.NewString()
	g.Touch(time.Now())
	snapshot, _ := json.Marshal(g)

	resp := ts.do(t, http.MethodPost, "/sync/goals", token, lifesync.PushRequest{
		Operation: lifesync.OperationCreate,
		Data:      snapshot,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete goal push: got %d, want 422", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type: %q", ct)
	}
	if _, err := ts.db.Goals().GetByUID(context.Background(), g.UID); err == nil {
		t.Error("invalid goal reached the store")
	}
}

func TestSync_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "phone")

	for _, tc := range []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown table", "/sync/devices", lifesync.PushRequest{Operation: lifesync.OperationCreate, Data: json.RawMessage(`{}`)}, http.StatusNotFound},
		{"unknown operation", "/sync/tasks", lifesync.PushRequest{Operation: "upsert", Data: json.RawMessage(`{}`)}, http.StatusBadRequest},
		{"missing data", "/sync/tasks", lifesync.PushRequest{Operation: lifesync.OperationCreate}, http.StatusBadRequest},
	} {
		resp := ts.do(t, http.MethodPost, tc.path, token, tc.body)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}

	resp := ts.do(t, http.MethodGet, "/sync/tasks?since=yesterday", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since: got %d, want 400", resp.StatusCode)
	}
}

func TestTimeEntries_StartAndStop(t *testing.T) {
	ts := newTestServer(t)
	token := ts.pairDevice(t, "laptop")

	resp := ts.do(t, http.MethodPost, "/time/entries", token, map[string]string{"title": "focus block"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	started := decodeBody[models.TimeLog](t, resp)
	if started.End != nil {
		t.Fatalf("entry already closed: %+v", started)
	}

	// A second start conflicts with the running entry
	resp = ts.do(t, http.MethodPost, "/time/entries", token, map[string]string{"title": "overlap"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double start: got %d, want 409", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPut, "/time/entries/current", token, nil)
	stopped := decodeBody[models.TimeLog](t, resp)
	if stopped.End == nil || stopped.UID != started.UID {
		t.Fatalf("stop: %+v", stopped)
	}

	resp = ts.do(t, http.MethodPut, "/time/entries/current", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stop without running entry: got %d, want 404", resp.StatusCode)
	}
}
