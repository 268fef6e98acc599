package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes: liveness and the second half of pairing
		r.Get("/health", h.Health)
		r.Post("/pair/complete", h.PairComplete)

		// Admin routes: pairing-code issuance and device management
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(h.adminKey))
			r.Post("/pair/start", h.PairStart)
			r.Get("/devices", h.ListDevices)
			r.Delete("/devices/{id}", h.RevokeDevice)
		})

		// Device routes: everything a paired client may do
		r.Group(func(r chi.Router) {
			r.Use(DeviceAuthMiddleware(h.devices))

			r.Post("/sync/{table}", h.SyncPush)
			r.Get("/sync/{table}", h.SyncChanges)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Get("/tasks/{id}", h.GetTask)
			r.Put("/tasks/{id}", h.UpdateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
			r.Post("/tasks/{id}/done", h.CompleteTask)
			r.Get("/tasks/uid/{uid}", h.GetTaskByUID)
			r.Put("/tasks/uid/{uid}", h.UpdateTaskByUID)
			r.Delete("/tasks/uid/{uid}", h.DeleteTaskByUID)

			r.Get("/time/entries", h.ListTimeEntries)
			r.Post("/time/entries", h.StartTimeEntry)
			r.Put("/time/entries/current", h.StopTimeEntry)

			r.Get("/trackers", h.ListTrackers)
			r.Post("/trackers/{id}/entries", h.AddTrackerEntry)
		})
	})

	return r
}
