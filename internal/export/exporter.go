// Package export writes the current result of a session in a downloadable format.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cortexai/chatbi/internal/dashboard"
)

// ErrUnsupportedFormat is returned by NewExporter for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(snap dashboard.Snapshot, w io.Writer) error
	Extension() string
	ContentType() string
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"csv", "json", "yaml"}
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "csv":
		return &CSVExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: csv, json, yaml)", ErrUnsupportedFormat, format)
	}
}

// Document is the structured form written by the JSON and YAML exporters.
type Document struct {
	Query     string            `json:"query" yaml:"query"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Columns   []string          `json:"columns" yaml:"columns"`
	Rows      []map[string]any  `json:"rows" yaml:"rows"`
	RowCount  int               `json:"row_count" yaml:"row_count"`
	Dashboard dashboard.Payload `json:"dashboard" yaml:"dashboard"`
}

func newDocument(snap dashboard.Snapshot) Document {
	doc := Document{
		Query:     snap.Query,
		CreatedAt: snap.CreatedAt.UTC(),
		Columns:   []string{},
		Rows:      []map[string]any{},
		Dashboard: snap.Payload,
	}
	if snap.Result != nil {
		doc.Columns = snap.Result.ColumnNames()
		doc.Rows = snap.Result.Rows
		doc.RowCount = snap.Result.Len()
	}
	return doc
}
