package export

import (
	"encoding/json"
	"io"

	"github.com/cortexai/chatbi/internal/dashboard"
)

// JSONExporter exports the result and dashboard as pretty-printed JSON
type JSONExporter struct{}

func (e *JSONExporter) Export(snap dashboard.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(newDocument(snap))
}

func (e *JSONExporter) Extension() string   { return "json" }
func (e *JSONExporter) ContentType() string { return "application/json" }
