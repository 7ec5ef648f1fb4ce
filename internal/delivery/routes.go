package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, hStatus *StatusHandler) {

	// liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// run history
	r.Get("/api/runs/{id}", hStatus.GetRun)
	r.Get("/api/runs/{id}/files", hStatus.ListFiles)
}
