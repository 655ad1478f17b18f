package assistant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

const maxMessageBytes = 4 << 10

// Handler serves the chat endpoint.
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

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Chat handles POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: "Not authenticated."})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body."})
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}

	reply, err := h.svc.Reply(r.Context(), actor, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Message cannot be empty."})
			return
		}
		h.logger.Error("chat turn failed", "user_id", actor.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "The assistant is unavailable right now."})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
