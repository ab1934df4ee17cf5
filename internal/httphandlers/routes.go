package httphandlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
)

func Routes(h *ApiHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(rr chi.Router) {
		rr.Get("/h", func(writer http.ResponseWriter, request *http.Request) {
			ok(writer, "Hoi, we're live!", struct{}{})
		})

		rr.Group(func(ar chi.Router) {
			ar.Use(h.authenticate)

			ar.Post("/backup/create", h.CreateBackup)
			ar.Get("/backup/stats", h.Stats)

			ar.Get("/backup/settings", h.GetSettings)
			ar.Put("/backup/settings", h.UpdateSettings)
			ar.Post("/backup/settings", h.UpdateSettings)
			ar.Delete("/backup/settings", h.ResetSettings)
			ar.Get("/backup/triggers", h.ListTriggers)

			ar.Get("/backup/jobs", h.ListJobs)
			ar.Get("/backup/jobs/{id}", h.GetJob)
			ar.Get("/backup/jobs/{id}/download", h.DownloadBackup)
			ar.Get("/backup/jobs/{id}/events", h.StreamEvents)
		})
	})
	return r
}
