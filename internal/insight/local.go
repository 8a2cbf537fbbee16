package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortexai/chatbi/internal/service"
)

// maxMetricColumns limits the "Key metrics" block.
const maxMetricColumns = 3

// LocalGenerator writes a deterministic summary without calling any model.
type LocalGenerator struct{}

func NewLocalGenerator() *LocalGenerator { return &LocalGenerator{} }

func (*LocalGenerator) Name() string    { return "local" }
func (*LocalGenerator) Available() bool { return true }

func (*LocalGenerator) Generate(_ context.Context, query string, result *service.ResultTable) (string, error) {
	return Summarize(query, result), nil
}

// Summarize builds the local insight text. It never fails.
func Summarize(query string, result *service.ResultTable) string {
	var rows, cols int
	if result != nil {
		rows, cols = result.Len(), len(result.Columns)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis of %d records with %d attributes.\n\n", rows, cols)

	if rows > 0 {
		numeric := numericColumns(result)
		if len(numeric) > 0 {
			b.WriteString("Key metrics:\n")
			if len(numeric) > maxMetricColumns {
				numeric = numeric[:maxMetricColumns]
			}
			for _, col := range numeric {
				fmt.Fprintf(&b, "- Average %s: %.2f\n", col, mean(result.Rows, col))
			}
		}
	}

	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "sales") || strings.Contains(q, "revenue"):
		b.WriteString("\nSales Insights: Consider analyzing seasonal trends and regional performance.")
	case strings.Contains(q, "customer"):
		b.WriteString("\nCustomer Insights: Focus on retention rates and segmentation opportunities.")
	default:
		b.WriteString("\nGeneral Insights: The data shows interesting patterns that warrant further investigation.")
	}
	return b.String()
}

// numericColumns returns, in result order, columns whose non-null values
// are all numbers. Columns holding only nulls are skipped.
func numericColumns(t *service.ResultTable) []string {
	var out []string
	for _, c := range t.Columns {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			v := row[c.Name]
			if v == nil {
				continue
			}
			seen = true
			if _, ok := service.ToFloat(v); !ok {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

func mean(rows []map[string]any, col string) float64 {
	var sum float64
	var n int
	for _, row := range rows {
		if f, ok := service.ToFloat(row[col]); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

