package querygen

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cortexai/chatbi/internal/nlp"
	"github.com/cortexai/chatbi/internal/service"
)

const (
	filterRowCap    = 100
	selectAllRowCap = 1000
	defaultRowCap   = 100
)

// Query is a derived, parameterized query ready for execution.
type Query struct {
	SQL    string     `json:"sql"`
	Args   []any      `json:"params"`
	Intent nlp.Intent `json:"intent"`
}

// Options selects the table and columns the templates target.
type Options struct {
	Table     string
	Measure   string
	Dimension string
	// FilterValues maps a column to the values recognised in question text.
	FilterValues map[string][]string
}

// Synthesizer turns an intent and question into a query over one table.
// Recognised values are always bound as parameters.
type Synthesizer struct {
	opts    Options
	dialect service.Dialect
}

func NewSynthesizer(opts Options, dialect service.Dialect) *Synthesizer {
	return &Synthesizer{opts: opts, dialect: dialect}
}

var plainIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ident leaves plain lower-case names bare and quotes everything else.
func (s *Synthesizer) ident(name string) string {
	if plainIdentRe.MatchString(name) {
		return name
	}
	return s.dialect.QuoteIdentifier(name)
}

// Synthesize builds the query for intent. text is the question as typed.
func (s *Synthesizer) Synthesize(intent nlp.Intent, text string) Query {
	lower := strings.ToLower(strings.TrimSpace(text))
	table := s.ident(s.opts.Table)

	var q Query
	switch intent {
	case nlp.IntentAggregation:
		q = s.aggregation(lower, table)
	case nlp.IntentFilter:
		q = s.filter(lower, table)
	case nlp.IntentCount:
		q = Query{SQL: "SELECT COUNT(*) AS total_count FROM " + table}
	case nlp.IntentSelectAll:
		q = Query{SQL: "SELECT * FROM " + table + " LIMIT " + strconv.Itoa(selectAllRowCap)}
	default:
		q = s.fallback(table)
	}
	q.Intent = intent
	if q.Args == nil {
		q.Args = []any{}
	}
	return q
}

func (s *Synthesizer) aggregation(text, table string) Query {
	measure := s.ident(s.opts.Measure)

	switch {
	case containsAny(text, "sum", "total"):
		if s.opts.Dimension != "" && strings.Contains(text, strings.ToLower(s.opts.Dimension)) {
			dim := s.ident(s.opts.Dimension)
			return Query{SQL: "SELECT " + dim + ", SUM(" + measure + ") AS total_amount FROM " + table +
				" GROUP BY " + dim + " ORDER BY total_amount DESC"}
		}
		return Query{SQL: "SELECT SUM(" + measure + ") AS total_amount FROM " + table}
	case containsAny(text, "average", "avg"):
		return Query{SQL: "SELECT AVG(" + measure + ") AS average_amount FROM " + table}
	case strings.Contains(text, "max"):
		return Query{SQL: "SELECT MAX(" + measure + ") AS max_amount FROM " + table}
	case strings.Contains(text, "min"):
		return Query{SQL: "SELECT MIN(" + measure + ") AS min_amount FROM " + table}
	case strings.Contains(text, "count"):
		return Query{SQL: "SELECT COUNT(*) AS total_records FROM " + table}
	default:
		return s.fallback(table)
	}
}

func (s *Synthesizer) filter(text, table string) Query {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM " + table + " WHERE 1=1")

	columns := make([]string, 0, len(s.opts.FilterValues))
	for col := range s.opts.FilterValues {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	args := []any{}
	for _, col := range columns {
		for _, v := range s.opts.FilterValues[col] {
			if v == "" || !strings.Contains(text, strings.ToLower(v)) {
				continue
			}
			args = append(args, v)
			sb.WriteString(" AND " + s.ident(col) + " = " + s.dialect.Placeholder(len(args)))
			break
		}
	}
	sb.WriteString(" LIMIT " + strconv.Itoa(filterRowCap))
	return Query{SQL: sb.String(), Args: args}
}

func (s *Synthesizer) fallback(table string) Query {
	return Query{SQL: "SELECT * FROM " + table + " LIMIT " + strconv.Itoa(defaultRowCap)}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
