package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// Handler handles HTTP requests for appointments and slots
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

// Slots handles GET /api/slots?date=YYYY-MM-DD
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.svc.Slots(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.logger.Error("failed to load slots", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: "Availability is temporarily unavailable. Please try again."})
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// List handles GET /api/appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := Filter{StudentEmail: q.Get("email")}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Unknown status filter."})
			return
		}
		filter.Status = status
	}
	if raw := q.Get("date"); raw != "" {
		d, err := clinictime.ParseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid date format. Please use YYYY-MM-DD."})
			return
		}
		filter.Date = &d
	}

	list, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body"})
		return
	}
	req.Mode = ModeStandard

	a, err := h.svc.Book(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get handles GET /api/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type rescheduleRequest struct {
	Date string `json:"appointment_date"`
	Time string `json:"appointment_time"`
}

// Reschedule handles PUT /api/appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body"})
		return
	}
	a, err := h.svc.Reschedule(r.Context(), actor, id, req.Date, req.Time)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Cancel handles PUT /api/appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Cancel(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type statusRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

// UpdateStatus handles PUT /api/appointments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body"})
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	a, err := h.svc.UpdateStatus(r.Context(), actor, id, status, req.AdminNote)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type diagnosisRequest struct {
	Diagnosis string `json:"diagnosis"`
}

// Diagnose handles PUT /api/appointments/{id}/diagnosis
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req diagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body"})
		return
	}
	a, err := h.svc.Diagnose(r.Context(), actor, id, req.Diagnosis)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/appointments/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps a service error to an HTTP status and client body.
func StatusFor(err error) (int, ErrorResponse) {
	if rej, ok := scheduling.AsRejection(err); ok {
		code := http.StatusBadRequest
		if rej.Reason == scheduling.ReasonConflict {
			code = http.StatusConflict
		}
		return code, ErrorResponse{Detail: rej.Message, Reason: string(rej.Reason)}
	}
	switch {
	case errors.Is(err, ErrDuplicatePending):
		return http.StatusBadRequest, ErrorResponse{Detail: "You already have a pending request.", Reason: "duplicate_pending"}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Detail: "Appointment not found."}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Detail: "You are not allowed to change this appointment."}
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidUrgency), errors.Is(err, ErrMissingName),
		errors.Is(err, ErrMissingDiagnosis):
		return http.StatusBadRequest, ErrorResponse{Detail: capitalize(err.Error()) + "."}
	}
	return http.StatusInternalServerError, ErrorResponse{Detail: "Something went wrong while saving your appointment. Please try again."}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, body := StatusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("appointment request failed", "error", err)
	}
	writeJSON(w, code, body)
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: "Not authenticated."})
	}
	return p, ok
}

func appointmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid appointment id."})
		return 0, false
	}
	return id, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
