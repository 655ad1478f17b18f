package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// Handler serves the auth and account endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: "Not authenticated."})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// List handles GET /api/users?role=nurse,doctor
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var roles []auth.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			role, err := auth.ParseRole(part)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Unknown role filter."})
				return
			}
			roles = append(roles, role)
		}
	}
	list, err := h.svc.List(r.Context(), p, roles)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/admin/users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}
	u, err := h.svc.CreateUser(r.Context(), p, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Delete handles DELETE /api/users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid user id."})
		return
	}
	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: "Invalid email or password."})
	case errors.Is(err, ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "Email is already registered."})
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrSelfDelete):
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: capitalize(err.Error()) + "."})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "User not found."})
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrMissingFields), errors.Is(err, auth.ErrUnknownRole):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: validationMessage(err)})
	default:
		h.logger.Error("account request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Something went wrong. Please try again."})
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 8 characters."
	case errors.Is(err, auth.ErrUnknownRole):
		return "Role must be admin, nurse, doctor or student."
	}
	return "A valid full name and email are required."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
