package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/Baltuneedu/pdf-compress-app/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(h.CORS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/storage", h.StorageWebhook)
		r.Post("/documents", h.IngestDocument)
		r.Get("/documents/{id}", h.DocumentStatus)
	})

	return r
}
