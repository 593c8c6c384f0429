package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the administrative surface. Control commands applied here
// (capture start/stop, config replace) take effect on the pipeline's next
// message; there is no other coupling.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/capture", h.GetCapture)
		r.Get("/capture/history", h.GetCaptureHistory)
		r.Post("/capture/start", h.StartCapture)
		r.Post("/capture/stop", h.StopCapture)

		r.Get("/config", h.GetConfig)
		r.Put("/config", h.ReplaceConfig)

		r.Get("/stations", h.GetStations)

		r.Get("/alerts", h.GetAlerts)
		r.Post("/alerts", h.CreateAlert)
		r.Post("/alerts/{id}/ack", h.AcknowledgeAlert)
	})

	r.Get("/ws", h.ServeWS)

	return r
}
