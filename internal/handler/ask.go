package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cortexai/chatbi/internal/models"
	"github.com/cortexai/chatbi/internal/pipeline"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/rs/zerolog/log"
)

// SessionHeader carries the session id when it is not in the body or query.
const SessionHeader = "X-Session-ID"

// AskHandler handles POST /api/v1/ask
type AskHandler struct {
	pipeline *pipeline.Pipeline
}

func NewAskHandler(p *pipeline.Pipeline) *AskHandler {
	return &AskHandler{pipeline: p}
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Normalize(r.Header.Get(SessionHeader))
	if msg := req.Validate(); msg != "" {
		models.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	resp, err := h.pipeline.Handle(r.Context(), req.Query, req.SessionID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set(SessionHeader, resp.SessionID)
	models.WriteJSON(w, http.StatusOK, resp)
}

// writePipelineError maps a pipeline failure onto a status code.
func writePipelineError(w http.ResponseWriter, err error) {
	var qe *service.QueryError
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		models.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoResult):
		models.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConnection):
		models.WriteError(w, http.StatusServiceUnavailable, "storage unavailable: "+err.Error())
	case errors.As(err, &qe):
		models.WriteJSON(w, http.StatusInternalServerError, models.QueryFailure{
			ErrorResponse: models.NewErrorResponse(http.StatusInternalServerError, "query execution failed: "+qe.Err.Error()),
			SQL:           qe.SQL,
		})
	default:
		log.Error().Err(err).Msg("unhandled pipeline error")
		models.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sessionID reads the session id from the query string or the header.
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("session_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}
