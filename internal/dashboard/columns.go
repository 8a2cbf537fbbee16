package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/cortexai/chatbi/internal/service"
)

// Role is the part a column can play in a chart.
type Role string

const (
	RoleNumeric     Role = "numeric"
	RoleCategorical Role = "categorical"
	RoleTemporal    Role = "temporal"
	RoleUnknown     Role = "unknown"
)

// Value type names reported in the summary.
const (
	typeInt     = "int64"
	typeFloat   = "float64"
	typeString  = "string"
	typeBool    = "bool"
	typeTime    = "datetime"
	typeMixed   = "mixed"
	typeNull    = "null"
	typeUnknown = "object"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

type columnInfo struct {
	name      string
	role      Role
	valueType string
}

// inferColumns derives a role and value type for each result column.
// Columns without any non-null value fall back to the backend type name.
func inferColumns(t *service.ResultTable) []columnInfo {
	infos := make([]columnInfo, len(t.Columns))
	for i, col := range t.Columns {
		vt := valueType(t.Rows, col.Name)
		if vt == typeNull {
			vt = declaredType(col.Type)
		}
		infos[i] = columnInfo{
			name:      col.Name,
			valueType: vt,
			role:      roleFor(col.Name, vt, t.Rows),
		}
	}
	return infos
}

func valueType(rows []map[string]any, col string) string {
	seen := ""
	for _, r := range rows {
		v := r[col]
		if v == nil {
			continue
		}
		var vt string
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			vt = typeInt
		case float32, float64:
			vt = typeFloat
		case string:
			vt = typeString
		case bool:
			vt = typeBool
		case time.Time:
			vt = typeTime
		default:
			vt = typeUnknown
		}
		switch {
		case seen == "":
			seen = vt
		case seen == vt:
		case isNumericType(seen) && isNumericType(vt):
			seen = typeFloat
		default:
			return typeMixed
		}
	}
	if seen == "" {
		return typeNull
	}
	return seen
}

func declaredType(backend string) string {
	t := strings.ToUpper(backend)
	switch {
	case t == "":
		return typeNull
	case strings.Contains(t, "INT"):
		return typeInt
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return typeFloat
	case strings.Contains(t, "BOOL"):
		return typeBool
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return typeTime
	default:
		return typeString
	}
}

func isNumericType(vt string) bool {
	return vt == typeInt || vt == typeFloat
}

func roleFor(name, vt string, rows []map[string]any) Role {
	lower := strings.ToLower(name)
	switch {
	case isNumericType(vt):
		return RoleNumeric
	case vt == typeTime:
		return RoleTemporal
	case vt == typeString || vt == typeBool || vt == typeMixed:
		if strings.Contains(lower, "date") || strings.Contains(lower, "time") {
			return RoleTemporal
		}
		if vt == typeString && allDates(rows, name) {
			return RoleTemporal
		}
		return RoleCategorical
	default:
		return RoleUnknown
	}
}

func allDates(rows []map[string]any, col string) bool {
	found := false
	for _, r := range rows {
		s, ok := r[col].(string)
		if !ok {
			continue
		}
		if _, ok := parseDate(s); !ok {
			return false
		}
		found = true
	}
	return found
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func label(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// title upper-cases the first letter of every word, treating any
// non-letter as a word break, and lower-cases the rest.
func title(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

// round2 rounds half away from zero to two decimals using the shortest
// decimal form of v, so 50.005 becomes 50.01.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e12 {
		return math.Round(v*100) / 100
	}
	micro := int64(math.Round(v * 1e6))
	sign := int64(1)
	if micro < 0 {
		sign, micro = -1, -micro
	}
	cents := (micro + 5000) / 10000
	return float64(sign*cents) / 100
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return parseDate(x)
	default:
		return time.Time{}, false
	}
}
