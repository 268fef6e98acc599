package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/repository"
	"github.com/lifelog-dev/lifelog/internal/store"
)

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	repos    *repository.Repositories
	devices  *store.DeviceStore
	adminKey string
}

// NewHandler creates a Handler.
func NewHandler(repos *repository.Repositories, devices *store.DeviceStore, adminKey string) *Handler {
	return &Handler{repos: repos, devices: devices, adminKey: adminKey}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListTasks handles GET /api/v1/tasks. Optional status, project, and
// category filters narrow the result.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	f := store.Filters{Where: map[string]any{}}
	for _, key := range []string{"status", "project", "category"} {
		if v := r.URL.Query().Get(key); v != "" {
			f.Where[key] = v
		}
	}
	tasks, err := h.repos.Tasks.Query(r.Context(), f)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := task.Normalize(); err != nil {
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.repos.Tasks.Add(r.Context(), &task); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &task)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}
	task, err := h.repos.Tasks.GetByID(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PUT /api/v1/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}
	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := task.Normalize(); err != nil {
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.repos.Tasks.Update(r.Context(), id, &task); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &task)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}
	if err := h.repos.Tasks.Delete(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask handles POST /api/v1/tasks/{id}/done
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}
	task, err := h.repos.Tasks.GetByID(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	task.Status = models.StatusDone
	now := time.Now().UTC()
	task.End = &now
	if err := h.repos.Tasks.Update(r.Context(), id, task); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetTaskByUID handles GET /api/v1/tasks/uid/{uid}
func (h *Handler) GetTaskByUID(w http.ResponseWriter, r *http.Request) {
	task, err := h.repos.Tasks.GetByUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTaskByUID handles PUT /api/v1/tasks/uid/{uid} (host only).
func (h *Handler) UpdateTaskByUID(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := task.Normalize(); err != nil {
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	task.UID = uid
	task.Touch(time.Now())
	if err := h.repos.Tasks.UpdateByUID(r.Context(), uid, &task); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &task)
}

// DeleteTaskByUID handles DELETE /api/v1/tasks/uid/{uid} (host only,
// soft delete so the tombstone propagates).
func (h *Handler) DeleteTaskByUID(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.repos.Tasks.DeleteByUID(r.Context(), uid, time.Now()); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTimeEntries handles GET /api/v1/time/entries
func (h *Handler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	f := store.Filters{Where: map[string]any{}}
	if v := r.URL.Query().Get("category"); v != "" {
		f.Where["category"] = v
	}
	entries, err := h.repos.TimeLogs.Query(r.Context(), f)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.TimeLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// StartTimeEntry handles POST /api/v1/time/entries
func (h *Handler) StartTimeEntry(w http.ResponseWriter, r *http.Request) {
	var entry models.TimeLog
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if entry.Start.IsZero() {
		entry.Start = time.Now().UTC()
	}
	if err := entry.Normalize(); err != nil {
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.repos.StartTimer(r.Context(), &entry); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &entry)
}

// StopTimeEntry handles PUT /api/v1/time/entries/current
func (h *Handler) StopTimeEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.repos.StopTimer(r.Context(), time.Now())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListTrackers handles GET /api/v1/trackers
func (h *Handler) ListTrackers(w http.ResponseWriter, r *http.Request) {
	trackers, err := h.repos.Trackers.Query(r.Context(), store.Filters{})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if trackers == nil {
		trackers = []*models.Tracker{}
	}
	writeJSON(w, http.StatusOK, trackers)
}

// AddTrackerEntry handles POST /api/v1/trackers/{id}/entries
func (h *Handler) AddTrackerEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid tracker id")
		return
	}
	var entry models.TrackerEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	entry.TrackerID = id
	if err := h.repos.AddTrackerEntry(r.Context(), &entry); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &entry)
}
