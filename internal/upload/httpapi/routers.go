package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(CallerIdentity)

		r.Post("/courses/{courseID}/uploads", h.InitiateUpload)

		r.Route("/uploads/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/part-urls", h.PartUploadURLs)
			r.Put("/parts/{partNumber}", h.RecordPart)
			r.Post("/complete", h.CompleteUpload)
			r.Delete("/", h.AbortUpload)
		})
	})

	return r
}
