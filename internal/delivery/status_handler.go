package delivery

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"

	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// StatusHandler serves run history from the archive.
type StatusHandler struct {
	archive ports.RunArchive
	log     *logger.ZapLogger
}

func NewStatusHandler(archive ports.RunArchive, log *logger.ZapLogger) *StatusHandler {
	return &StatusHandler{
		archive: archive,
		log:     log,
	}
}

// GET /api/runs/{id}
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	row, err := h.archive.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "failed get run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if row == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "run fetched",
		Fields: map[string]any{
			"runID": id,
		},
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(row)
}

// GET /api/runs/{id}/files
func (h *StatusHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	outcomes, err := h.archive.ListOutcomes(r.Context(), id)
	if err != nil {
		http.Error(w, "failed list files: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"runId": id,
		"count": len(outcomes),
		"files": outcomes,
	})
}
