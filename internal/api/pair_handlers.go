package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/lifelog-dev/lifelog/internal/store"
)

// pairCodeTTL bounds how long an issued pairing code is redeemable.
const pairCodeTTL = 5 * time.Minute

// PairStart handles POST /api/v1/pair/start (admin key required). It
// issues a single-use code the joining device must present within five
// minutes.
func (h *Handler) PairStart(w http.ResponseWriter, r *http.Request) {
	code, err := store.NewPairCode()
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	now := time.Now().UTC()
	expires := now.Add(pairCodeTTL)
	if err := h.devices.CreatePairCode(r.Context(), code, now, expires); err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("pairing code issued",
		"component", "api",
		"action", "pair_start",
		"expires_at", expires,
	)
	writeJSON(w, http.StatusCreated, map[string]string{
		"code":       code,
		"expires_at": expires.Format(time.RFC3339),
	})
}

type pairCompleteRequest struct {
	Code       string `json:"code"`
	DeviceName string `json:"device_name"`
}

// PairComplete handles POST /api/v1/pair/complete (public). Redeeming a
// valid code registers the device and returns its bearer token exactly
// once; the host keeps only the token's hash.
func (h *Handler) PairComplete(w http.ResponseWriter, r *http.Request) {
	var req pairCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.Code == "" || req.DeviceName == "" {
		WriteProblem(w, r, http.StatusBadRequest, "code and device_name are required")
		return
	}

	now := time.Now().UTC()
	if err := h.devices.ConsumePairCode(r.Context(), strings.ToUpper(req.Code), now); err != nil {
		MapStoreError(w, r, err)
		return
	}

	token, err := store.NewDeviceToken()
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	device := &store.Device{
		ID:        ulid.Make().String(),
		Name:      req.DeviceName,
		TokenHash: store.HashToken(token),
		CreatedAt: now,
	}
	if err := h.devices.Insert(r.Context(), device); err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("device paired",
		"component", "api",
		"action", "pair_complete",
		"device_id", device.ID,
		"device_name", device.Name,
	)
	writeJSON(w, http.StatusCreated, map[string]string{
		"device_id": device.ID,
		"token":     token,
	})
}

// ListDevices handles GET /api/v1/devices (admin key required).
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	type deviceView struct {
		ID         string     `json:"id"`
		Name       string     `json:"name"`
		CreatedAt  time.Time  `json:"created_at"`
		LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	}
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceView{
			ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, LastSeenAt: d.LastSeenAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RevokeDevice handles DELETE /api/v1/devices/{id} (admin key required).
func (h *Handler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid device id")
		return
	}
	if err := h.devices.Revoke(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
