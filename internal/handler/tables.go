package handler

import (
	"net/http"

	"github.com/cortexai/chatbi/internal/models"
	"github.com/cortexai/chatbi/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// TablesHandler handles schema endpoints
type TablesHandler struct {
	pipeline *pipeline.Pipeline
}

func NewTablesHandler(p *pipeline.Pipeline) *TablesHandler {
	return &TablesHandler{pipeline: p}
}

// ListTables handles GET /api/v1/tables
func (h *TablesHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables := h.pipeline.Tables(r.Context())
	models.WriteJSON(w, http.StatusOK, models.TablesResponse{
		Status: "success",
		Tables: tables,
		Count:  len(tables),
	})
}

// GetTable handles GET /api/v1/tables/{table}
func (h *TablesHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	schema, ok := h.pipeline.TableInfo(r.Context(), name)
	if !ok {
		models.WriteError(w, http.StatusNotFound, "table not found: "+name)
		return
	}
	models.WriteJSON(w, http.StatusOK, models.TableResponse{Status: "success", Table: schema})
}
