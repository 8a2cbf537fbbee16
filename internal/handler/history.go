package handler

import (
	"net/http"
	"strconv"

	"github.com/cortexai/chatbi/internal/models"
	"github.com/cortexai/chatbi/internal/pipeline"
	"github.com/cortexai/chatbi/internal/session"
)

// HistoryHandler serves session history, dashboards and exports.
type HistoryHandler struct {
	pipeline *pipeline.Pipeline
}

func NewHistoryHandler(p *pipeline.Pipeline) *HistoryHandler {
	return &HistoryHandler{pipeline: p}
}

// History handles GET /api/v1/history?session_id=...
// With persisted=true the query log is read instead of the live session, so
// history survives session expiry.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		models.WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if persisted, _ := strconv.ParseBool(r.URL.Query().Get("persisted")); persisted {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := h.pipeline.PersistedHistory(r.Context(), id, models.HistoryLimit(limit))
		if err != nil {
			models.WriteError(w, http.StatusInternalServerError, "failed to read history: "+err.Error())
			return
		}
		models.WriteJSON(w, http.StatusOK, models.PersistedHistoryResponse{
			Status:    "success",
			SessionID: id,
			History:   entries,
			Count:     len(entries),
		})
		return
	}

	// unknown and expired sessions simply have no history yet
	entries, ok := h.pipeline.History(id)
	if !ok {
		entries = []session.HistoryEntry{}
	}
	models.WriteJSON(w, http.StatusOK, models.HistoryResponse{
		Status:    "success",
		SessionID: id,
		History:   entries,
		Count:     len(entries),
	})
}

// Dashboard handles GET /api/v1/dashboard?session_id=...
func (h *HistoryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		models.WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	snap, ok := h.pipeline.Dashboard(id)
	if !ok {
		models.WriteJSON(w, http.StatusOK, models.NoDataResponse{
			Status:    "success",
			SessionID: id,
			Message:   models.NoDataMessage,
		})
		return
	}
	models.WriteJSON(w, http.StatusOK, models.DashboardResponse{
		Status:    "success",
		SessionID: id,
		Query:     snap.Query,
		Dashboard: snap.Payload,
	})
}
