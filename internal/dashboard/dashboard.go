package dashboard

import (
	"sort"
	"strings"

	"github.com/cortexai/chatbi/internal/service"
)

const (
	maxTableRows  = 100
	maxPieSlices  = 10
	maxKPIs       = 4
	columnWidth   = 120
	barBackground = "rgba(54, 162, 235, 0.5)"
	barBorder     = "rgba(54, 162, 235, 1)"
	lineBorder    = "rgba(75, 192, 192, 1)"
	lineFill      = "rgba(75, 192, 192, 0.2)"
)

var piePalette = []string{
	"rgba(255, 99, 132, 0.5)",
	"rgba(54, 162, 235, 0.5)",
	"rgba(255, 205, 86, 0.5)",
	"rgba(75, 192, 192, 0.5)",
	"rgba(153, 102, 255, 0.5)",
	"rgba(255, 159, 64, 0.5)",
	"rgba(199, 199, 199, 0.5)",
	"rgba(83, 102, 255, 0.5)",
	"rgba(255, 99, 255, 0.5)",
	"rgba(99, 255, 132, 0.5)",
}

// Payload is everything the dashboard view needs for one result.
type Payload struct {
	Summary Summary `json:"summary" yaml:"summary"`
	Charts  []Chart `json:"charts" yaml:"charts"`
	Table   Table   `json:"table" yaml:"table"`
	KPIs    []KPI   `json:"kpis" yaml:"kpis"`
}

type Summary struct {
	RowCount    int               `json:"row_count" yaml:"row_count"`
	ColumnCount int               `json:"column_count" yaml:"column_count"`
	ColumnTypes map[string]string `json:"column_types" yaml:"column_types"`
	ColumnRoles map[string]Role   `json:"column_roles" yaml:"column_roles"`
	TypeCounts  map[string]int    `json:"type_counts" yaml:"type_counts"`
}

// Chart is a Chart.js style descriptor.
type Chart struct {
	Type    string         `json:"type" yaml:"type"`
	Title   string         `json:"title" yaml:"title"`
	Data    ChartData      `json:"data" yaml:"data"`
	Options map[string]any `json:"options" yaml:"options"`
}

type ChartData struct {
	Labels   []string  `json:"labels" yaml:"labels"`
	Datasets []Dataset `json:"datasets" yaml:"datasets"`
}

type Dataset struct {
	Label           string    `json:"label,omitempty" yaml:"label,omitempty"`
	Data            []float64 `json:"data" yaml:"data"`
	BackgroundColor any       `json:"backgroundColor" yaml:"backgroundColor"`
	BorderColor     any       `json:"borderColor" yaml:"borderColor"`
	BorderWidth     int       `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
	Tension         float64   `json:"tension,omitempty" yaml:"tension,omitempty"`
}

type Table struct {
	Columns   []TableColumn    `json:"columns" yaml:"columns"`
	Rows      []map[string]any `json:"rows" yaml:"rows"`
	TotalRows int              `json:"total_rows" yaml:"total_rows"`
}

type TableColumn struct {
	Field      string `json:"field" yaml:"field"`
	HeaderName string `json:"headerName" yaml:"headerName"`
	Width      int    `json:"width" yaml:"width"`
}

type KPI struct {
	Title  string  `json:"title" yaml:"title"`
	Value  float64 `json:"value" yaml:"value"`
	Type   string  `json:"type" yaml:"type"` // sum | average
	Change float64 `json:"change" yaml:"change"`
}

// Build derives the dashboard for a result. It is a pure function of t.
func Build(t *service.ResultTable) Payload {
	if t == nil {
		t = &service.ResultTable{}
	}
	cols := inferColumns(t)

	var numeric, categorical, temporal []string
	for _, c := range cols {
		switch c.role {
		case RoleNumeric:
			numeric = append(numeric, c.name)
		case RoleCategorical:
			categorical = append(categorical, c.name)
		case RoleTemporal:
			temporal = append(temporal, c.name)
		}
	}

	charts := make([]Chart, 0, 3)
	if len(categorical) > 0 && len(numeric) > 0 {
		charts = append(charts, barChart(t.Rows, categorical[0], numeric[0]))
	}
	if len(temporal) > 0 && len(numeric) > 0 {
		charts = append(charts, lineChart(t.Rows, temporal[0], numeric[0]))
	}
	if len(categorical) > 0 {
		charts = append(charts, pieChart(t.Rows, categorical[0]))
	}

	return Payload{
		Summary: summarize(t, cols),
		Charts:  charts,
		Table:   tableView(t),
		KPIs:    kpis(t.Rows, numeric),
	}
}

func summarize(t *service.ResultTable, cols []columnInfo) Summary {
	s := Summary{
		RowCount:    len(t.Rows),
		ColumnCount: len(cols),
		ColumnTypes: make(map[string]string, len(cols)),
		ColumnRoles: make(map[string]Role, len(cols)),
		TypeCounts:  make(map[string]int),
	}
	for _, c := range cols {
		s.ColumnTypes[c.name] = c.valueType
		s.ColumnRoles[c.name] = c.role
		s.TypeCounts[c.valueType]++
	}
	return s
}

// barChart sums num per cat group; labels keep first-seen order.
func barChart(rows []map[string]any, cat, num string) Chart {
	labels := make([]string, 0)
	sums := make(map[string]float64)
	for _, r := range rows {
		if r[cat] == nil {
			continue
		}
		key := label(r[cat])
		if _, ok := sums[key]; !ok {
			labels = append(labels, key)
		}
		f, _ := service.ToFloat(r[num])
		sums[key] += f
	}
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = sums[l]
	}

	return Chart{
		Type:  "bar",
		Title: title(num) + " by " + title(cat),
		Data: ChartData{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           title(num),
				Data:            data,
				BackgroundColor: barBackground,
				BorderColor:     barBorder,
				BorderWidth:     1,
			}},
		},
		Options: map[string]any{
			"responsive": true,
			"scales":     map[string]any{"y": map[string]any{"beginAtZero": true}},
		},
	}
}

// lineChart plots num against tcol sorted ascending; rows with no time
// value go last.
func lineChart(rows []map[string]any, tcol, num string) Chart {
	sorted := make([]map[string]any, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessTemporal(sorted[i][tcol], sorted[j][tcol])
	})

	labels := make([]string, len(sorted))
	data := make([]float64, len(sorted))
	for i, r := range sorted {
		labels[i] = label(r[tcol])
		data[i], _ = service.ToFloat(r[num])
	}

	return Chart{
		Type:  "line",
		Title: title(num) + " Over Time",
		Data: ChartData{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           title(num),
				Data:            data,
				BorderColor:     lineBorder,
				BackgroundColor: lineFill,
				Tension:         0.1,
			}},
		},
		Options: map[string]any{
			"responsive": true,
			"scales":     map[string]any{"y": map[string]any{"beginAtZero": true}},
		},
	}
}

func lessTemporal(a, b any) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	ta, okA := asTime(a)
	tb, okB := asTime(b)
	if okA && okB {
		return ta.Before(tb)
	}
	if fa, ok := service.ToFloat(a); ok {
		if fb, ok := service.ToFloat(b); ok {
			return fa < fb
		}
	}
	return label(a) < label(b)
}

// pieChart counts values of cat and keeps the most frequent slices,
// breaking ties by first appearance.
func pieChart(rows []map[string]any, cat string) Chart {
	order := make([]string, 0)
	counts := make(map[string]int)
	for _, r := range rows {
		if r[cat] == nil {
			continue
		}
		key := label(r[cat])
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxPieSlices {
		order = order[:maxPieSlices]
	}

	data := make([]float64, len(order))
	for i, k := range order {
		data[i] = float64(counts[k])
	}
	background := piePalette[:len(order)]
	border := make([]string, len(background))
	for i, c := range background {
		border[i] = strings.Replace(c, "0.5", "1", 1)
	}

	return Chart{
		Type:  "pie",
		Title: "Distribution of " + title(cat),
		Data: ChartData{
			Labels: order,
			Datasets: []Dataset{{
				Data:            data,
				BackgroundColor: background,
				BorderColor:     border,
				BorderWidth:     1,
			}},
		},
		Options: map[string]any{"responsive": true},
	}
}

func tableView(t *service.ResultTable) Table {
	columns := make([]TableColumn, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = TableColumn{Field: c.Name, HeaderName: title(c.Name), Width: columnWidth}
	}
	n := min(len(t.Rows), maxTableRows)
	rows := make([]map[string]any, n)
	copy(rows, t.Rows[:n])
	return Table{Columns: columns, Rows: rows, TotalRows: len(t.Rows)}
}

func kpis(rows []map[string]any, numeric []string) []KPI {
	out := make([]KPI, 0, maxKPIs)
	for _, col := range numeric[:min(len(numeric), maxKPIs)] {
		var sum float64
		var n int
		for _, r := range rows {
			if f, ok := service.ToFloat(r[col]); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			continue
		}
		lower := strings.ToLower(col)
		kpi := KPI{Title: title(col), Type: "average", Value: round2(sum / float64(n))}
		if strings.Contains(lower, "total") || strings.Contains(lower, "sum") {
			kpi.Type = "sum"
			kpi.Value = round2(sum)
		}
		out = append(out, kpi)
	}
	return out
}
