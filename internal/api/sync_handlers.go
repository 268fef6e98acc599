package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
	lifesync "github.com/lifelog-dev/lifelog/internal/sync"
)

// SyncPush handles POST /api/v1/sync/{table}. The body is one queued client
// change; applying it is idempotent, so a client that lost our ack can
// safely resend.
func (h *Handler) SyncPush(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !lifesync.KnownTable(table) {
		WriteProblem(w, r, http.StatusNotFound, "Unknown sync table")
		return
	}

	var req lifesync.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	switch req.Operation {
	case lifesync.OperationCreate, lifesync.OperationUpdate, lifesync.OperationDelete:
	default:
		WriteProblem(w, r, http.StatusBadRequest, "Unknown sync operation")
		return
	}
	if len(req.Data) == 0 {
		WriteProblem(w, r, http.StatusBadRequest, "Missing data")
		return
	}

	if err := h.repos.ApplyPush(r.Context(), table, req.Operation, req.Data); err != nil {
		slog.Error("sync push failed",
			"component", "api",
			"action", "sync_push",
			"table", table,
			"operation", req.Operation,
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}

	device := DeviceFromContext(r.Context())
	slog.Info("sync push applied",
		"component", "api",
		"action", "sync_push",
		"table", table,
		"operation", req.Operation,
		"device_id", deviceID(device),
	)
	writeJSON(w, http.StatusOK, lifesync.PushResponse{Status: "success"})
}

// SyncChanges handles GET /api/v1/sync/{table}?since=... and returns full
// snapshots, tombstones included, with updated_at at or after since.
// Without since the whole table is returned (initial sync).
func (h *Handler) SyncChanges(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !lifesync.KnownTable(table) {
		WriteProblem(w, r, http.StatusNotFound, "Unknown sync table")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := models.ParseTime(raw)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "Invalid since timestamp")
			return
		}
		since = parsed
	}

	records, err := h.repos.ChangedSince(r.Context(), table, since)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(records))
}

func deviceID(d *store.Device) string {
	if d == nil {
		return ""
	}
	return d.ID
}

// emptyAsList keeps a changed-since response a JSON array even when the
// underlying typed slice is nil.
func emptyAsList(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return []any{}
	}
	return v
}
