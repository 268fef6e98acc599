package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lifelog-dev/lifelog/internal/store"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusUnauthorized: {
		typeURI: "https://lifelog.dev/errors/unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "https://lifelog.dev/errors/bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "https://lifelog.dev/errors/not-found",
		title:   "Not Found",
	},
	http.StatusInternalServerError: {
		typeURI: "https://lifelog.dev/errors/internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "https://lifelog.dev/errors/validation-error",
		title:   "Validation Error",
	},
	http.StatusConflict: {
		typeURI: "https://lifelog.dev/errors/conflict",
		title:   "Conflict",
	},
	http.StatusForbidden: {
		typeURI: "https://lifelog.dev/errors/forbidden",
		title:   "Forbidden",
	},
	http.StatusGone: {
		typeURI: "https://lifelog.dev/errors/gone",
		title:   "Gone",
	},
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt, ok := problemTypes[status]
	if !ok {
		pt = struct {
			typeURI string
			title   string
		}{
			typeURI: "https://lifelog.dev/errors/unknown",
			title:   http.StatusText(status),
		}
	}

	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapStoreError converts domain errors to Problem Details responses.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrUIDRequired):
		WriteProblem(w, r, http.StatusBadRequest, "uid is required")
	case errors.Is(err, store.ErrDuplicateUID):
		WriteProblem(w, r, http.StatusConflict, "uid already exists")
	case errors.Is(err, store.ErrUnknownSyncTable):
		WriteProblem(w, r, http.StatusNotFound, "Unknown sync table")
	case errors.Is(err, store.ErrUnknownGoalKind):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Unknown goal kind")
	case errors.Is(err, store.ErrInvalidEntity):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Snapshot failed validation")
	case errors.Is(err, store.ErrTrackerNotFound):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Goal references an unknown tracker")
	case errors.Is(err, store.ErrEntryOpen):
		WriteProblem(w, r, http.StatusConflict, "A time entry is already running")
	case errors.Is(err, store.ErrNoActiveEntry):
		WriteProblem(w, r, http.StatusNotFound, "No time entry is running")
	case errors.Is(err, store.ErrPairCodeInvalid):
		WriteProblem(w, r, http.StatusForbidden, "Pairing code unknown or already used")
	case errors.Is(err, store.ErrPairCodeExpired):
		WriteProblem(w, r, http.StatusGone, "Pairing code expired")
	case errors.Is(err, store.ErrHostOnly):
		WriteProblem(w, r, http.StatusForbidden, "Operation only valid on the host")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
