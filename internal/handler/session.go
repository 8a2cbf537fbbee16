package handler

import (
	"net/http"

	"github.com/cortexai/chatbi/internal/models"
	"github.com/cortexai/chatbi/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// SessionHandler manages conversation sessions.
type SessionHandler struct {
	pipeline *pipeline.Pipeline
}

func NewSessionHandler(p *pipeline.Pipeline) *SessionHandler {
	return &SessionHandler{pipeline: p}
}

// Create handles POST /api/v1/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	info := h.pipeline.CreateSession()
	w.Header().Set(SessionHeader, info.SessionID)
	models.WriteJSON(w, http.StatusCreated, models.SessionResponse{Status: "success", Session: info})
}

// Get handles GET /api/v1/session/{session_id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, ok := h.pipeline.SessionInfo(chi.URLParam(r, "session_id"))
	if !ok {
		models.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	models.WriteJSON(w, http.StatusOK, models.SessionResponse{Status: "success", Session: info})
}

// Delete handles DELETE /api/v1/session/{session_id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if !h.pipeline.DeleteSession(id) {
		models.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"session_id": id,
		"deleted":    true,
	})
}
