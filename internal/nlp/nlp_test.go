package nlp_test

import (
	"reflect"
	"testing"

	"github.com/cortexai/chatbi/internal/nlp"
)

func TestNormalize(t *testing.T) {
	p := nlp.NewPreprocessor()

	tests := []struct {
		in   string
		want string
	}{
		{"Show me the TOTAL sales", "show me total sales"},
		{"  what   is the revenue?? ", "what is revenue"},
		{"sales @ #region & (paris)", "sales region paris"},
		{"Revenue in Île-de-France", "revenue île de france"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	p := nlp.NewPreprocessor()

	got := p.ExtractKeywords("What was the total revenue in 2024?")
	want := []string{"total", "revenue", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keywords = %v, want %v", got, want)
	}

	// no business terms: first five tokens
	got = p.ExtractKeywords("list customers orders products stores employees suppliers")
	want = []string{"list", "customers", "orders", "products", "stores"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fallback keywords = %v, want %v", got, want)
	}

	if got := p.ExtractKeywords(""); got == nil || len(got) != 0 {
		t.Errorf("empty input keywords = %#v, want empty slice", got)
	}
}

func TestExtractEntities(t *testing.T) {
	p := nlp.NewPreprocessor()

	e := p.ExtractEntities("Sales and profit in Provence above 1500.50 since 15/01/2024, top 3")
	if !reflect.DeepEqual(e.Numbers, []string{"1500.50", "15", "01", "2024", "3"}) {
		t.Errorf("numbers = %v", e.Numbers)
	}
	if !reflect.DeepEqual(e.Dates, []string{"15/01/2024"}) {
		t.Errorf("dates = %v", e.Dates)
	}
	if !reflect.DeepEqual(e.Regions, []string{"provence"}) {
		t.Errorf("regions = %v", e.Regions)
	}
	if !reflect.DeepEqual(e.Metrics, []string{"sales", "profit"}) {
		t.Errorf("metrics = %v", e.Metrics)
	}

	empty := p.ExtractEntities("")
	if empty.Numbers == nil || empty.Dates == nil || empty.Regions == nil || empty.Metrics == nil {
		t.Errorf("empty input should give empty slices, got %#v", empty)
	}
}

func TestProcess(t *testing.T) {
	q := nlp.NewPreprocessor().Process("Total sales by region")
	if q.Raw != "Total sales by region" {
		t.Errorf("raw = %q", q.Raw)
	}
	if q.Normalized != "total sales region" {
		t.Errorf("normalized = %q", q.Normalized)
	}
	if !reflect.DeepEqual(q.Tokens, []string{"total", "sales", "region"}) {
		t.Errorf("tokens = %v", q.Tokens)
	}
	if !reflect.DeepEqual(q.Keywords, []string{"total", "sales"}) {
		t.Errorf("keywords = %v", q.Keywords)
	}
}

func TestClassify(t *testing.T) {
	c := nlp.NewClassifier()

	tests := []struct {
		in   string
		want nlp.Intent
	}{
		{"total sales by region", nlp.IntentAggregation},
		{"average amount", nlp.IntentAggregation},
		{"show all sales count", nlp.IntentAggregation},
		{"total sales where region is set", nlp.IntentAggregation},
		{"sales where region is paris", nlp.IntentFilter},
		{"orders with high value", nlp.IntentFilter},
		{"how many orders", nlp.IntentCount},
		{"show all data", nlp.IntentSelectAll},
		{"give me everything", nlp.IntentSelectAll},
		{"hello there", nlp.IntentGeneral},
		{"", nlp.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := c.Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	p := nlp.NewPreprocessor()
	c := nlp.NewClassifier()
	for _, q := range []string{"total sales by region", "show all data", "how many rows?", "random words"} {
		first := c.Classify(p.Normalize(q))
		if second := c.Classify(p.Normalize(q)); first != second {
			t.Errorf("classification of %q changed: %q then %q", q, first, second)
		}
	}
}

func TestClassifyDetailedTrigger(t *testing.T) {
	res := nlp.NewClassifier().ClassifyDetailed("How many customers?")
	if res.Intent != nlp.IntentCount || res.Trigger != "how many" {
		t.Errorf("result = %+v", res)
	}
	if res := nlp.NewClassifier().ClassifyDetailed("nothing here"); res.Trigger != "" {
		t.Errorf("general intent should have no trigger, got %q", res.Trigger)
	}
}
