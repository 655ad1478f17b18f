package compliance

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// Handler serves the audit trail to administrators.
type Handler struct {
	svc    *AuditService
	logger *logging.Logger
}

func NewHandler(svc *AuditService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// History handles GET /api/appointments/{id}/audit
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid appointment id."})
		return
	}
	events, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.logger.Error("audit history failed", "appointment_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Could not load the audit trail."})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
