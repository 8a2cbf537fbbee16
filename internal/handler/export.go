package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cortexai/chatbi/internal/export"
	"github.com/cortexai/chatbi/internal/models"
	"github.com/cortexai/chatbi/internal/pipeline"
)

// ExportHandler handles POST /api/v1/export
type ExportHandler struct {
	pipeline *pipeline.Pipeline
}

func NewExportHandler(p *pipeline.Pipeline) *ExportHandler {
	return &ExportHandler{pipeline: p}
}

// Export handles POST /api/v1/export?format=csv|json|yaml&session_id=...
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		models.WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	exp, err := export.NewExporter(format)
	if err != nil {
		models.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("%v (supported: %s)", err, strings.Join(export.Formats(), ", ")))
		return
	}

	// Buffer so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.pipeline.Export(id, format, &buf); err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			models.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		writePipelineError(w, err)
		return
	}

	filename := fmt.Sprintf("chatbi-%s.%s", time.Now().UTC().Format("20060102-150405"), exp.Extension())
	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
