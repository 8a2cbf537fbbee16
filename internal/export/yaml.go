package export

import (
	"io"

	"github.com/cortexai/chatbi/internal/dashboard"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports the result and dashboard in YAML format
type YAMLExporter struct{}

func (e *YAMLExporter) Export(snap dashboard.Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(newDocument(snap))
}

func (e *YAMLExporter) Extension() string   { return "yaml" }
func (e *YAMLExporter) ContentType() string { return "application/yaml" }
