package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/athanasso/photos-widget/internal/api"
)

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", api.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/widget", func(r chi.Router) {
			r.Get("/", s.handleWidgetRead)
			r.Delete("/", s.handleWidgetClear)
			r.With(s.rateLimitMiddleware).Post("/advance", s.handleWidgetAdvance)
			r.Put("/interval", s.handleWidgetInterval)
			r.Put("/mode", s.handleWidgetMode)
		})

		r.Post("/photos/import", s.handlePhotosImport)

		r.Route("/acquire", func(r chi.Router) {
			r.Post("/", s.handleAcquireStart)
			r.Get("/", s.handleAcquireStatus)
			r.Post("/picker-dismissed", s.handlePickerDismissed)
			r.Post("/cancel", s.handleAcquireCancel)
		})

		r.With(s.rateLimitMiddleware).Post("/events", s.handleEvent)
	})

	return r
}
