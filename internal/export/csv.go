package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cortexai/chatbi/internal/dashboard"
)

// CSVExporter writes the result rows with a header line. Nulls become empty cells.
type CSVExporter struct{}

func (e *CSVExporter) Export(snap dashboard.Snapshot, w io.Writer) error {
	cw := csv.NewWriter(w)
	if snap.Result == nil {
		cw.Flush()
		return cw.Error()
	}

	cols := snap.Result.ColumnNames()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(cols))
	for _, row := range snap.Result.Rows {
		for i, c := range cols {
			record[i] = cell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *CSVExporter) Extension() string   { return "csv" }
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
