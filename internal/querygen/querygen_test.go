package querygen_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cortexai/chatbi/internal/config"
	"github.com/cortexai/chatbi/internal/nlp"
	"github.com/cortexai/chatbi/internal/querygen"
	"github.com/cortexai/chatbi/internal/service"
)

func defaultOptions() querygen.Options {
	return querygen.Options{
		Table:        config.DefaultTable,
		Measure:      config.DefaultMeasure,
		Dimension:    config.DefaultDimension,
		FilterValues: config.DefaultFilterValues,
	}
}

func sqliteDialect() service.Dialect {
	return service.NewSQLiteService(":memory:").Dialect()
}

func TestSynthesize(t *testing.T) {
	s := querygen.NewSynthesizer(defaultOptions(), sqliteDialect())

	tests := []struct {
		name   string
		intent nlp.Intent
		text   string
		sql    string
		args   []any
	}{
		{
			"grouped sum", nlp.IntentAggregation, "total sales by region",
			"SELECT region, SUM(amount) AS total_amount FROM sales GROUP BY region ORDER BY total_amount DESC", []any{},
		},
		{"scalar sum", nlp.IntentAggregation, "sum of sales", "SELECT SUM(amount) AS total_amount FROM sales", []any{}},
		{"average", nlp.IntentAggregation, "average sale", "SELECT AVG(amount) AS average_amount FROM sales", []any{}},
		{"max", nlp.IntentAggregation, "max sale", "SELECT MAX(amount) AS max_amount FROM sales", []any{}},
		{"min", nlp.IntentAggregation, "min sale", "SELECT MIN(amount) AS min_amount FROM sales", []any{}},
		{"aggregate count", nlp.IntentAggregation, "count sales", "SELECT COUNT(*) AS total_records FROM sales", []any{}},
		{
			"filter with value", nlp.IntentFilter, "sales where region is Paris",
			"SELECT * FROM sales WHERE 1=1 AND region = ? LIMIT 100", []any{"paris"},
		},
		{
			"filter first value wins", nlp.IntentFilter, "sales with lyon or toulouse",
			"SELECT * FROM sales WHERE 1=1 AND region = ? LIMIT 100", []any{"lyon"},
		},
		{"filter no value", nlp.IntentFilter, "sales where amount is high", "SELECT * FROM sales WHERE 1=1 LIMIT 100", []any{}},
		{"count", nlp.IntentCount, "how many sales", "SELECT COUNT(*) AS total_count FROM sales", []any{}},
		{"select all", nlp.IntentSelectAll, "show all data", "SELECT * FROM sales LIMIT 1000", []any{}},
		{"general", nlp.IntentGeneral, "hello", "SELECT * FROM sales LIMIT 100", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := s.Synthesize(tt.intent, tt.text)
			if q.SQL != tt.sql {
				t.Errorf("sql = %q\nwant  %q", q.SQL, tt.sql)
			}
			if !reflect.DeepEqual(q.Args, tt.args) {
				t.Errorf("args = %v, want %v", q.Args, tt.args)
			}
			if q.Intent != tt.intent {
				t.Errorf("intent = %q, want %q", q.Intent, tt.intent)
			}
		})
	}
}

func TestSynthesizeNeverInterpolatesValues(t *testing.T) {
	opts := defaultOptions()
	opts.FilterValues = map[string][]string{"region": {"o'neil"}}
	s := querygen.NewSynthesizer(opts, sqliteDialect())

	q := s.Synthesize(nlp.IntentFilter, "sales where region is o'neil")
	if q.SQL != "SELECT * FROM sales WHERE 1=1 AND region = ? LIMIT 100" {
		t.Errorf("sql = %q", q.SQL)
	}
	if len(q.Args) != 1 || q.Args[0] != "o'neil" {
		t.Errorf("args = %v", q.Args)
	}
}

func TestSynthesizePostgresPlaceholders(t *testing.T) {
	opts := defaultOptions()
	opts.FilterValues = map[string][]string{
		"region":  {"paris", "lyon"},
		"product": {"product a", "product b"},
	}
	s := querygen.NewSynthesizer(opts, service.NewPostgresService("postgres://localhost/x").Dialect())

	q := s.Synthesize(nlp.IntentFilter, "sales of product b where region is lyon")
	want := "SELECT * FROM sales WHERE 1=1 AND product = $1 AND region = $2 LIMIT 100"
	if q.SQL != want {
		t.Errorf("sql = %q\nwant  %q", q.SQL, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"product b", "lyon"}) {
		t.Errorf("args = %v", q.Args)
	}
}

func TestSynthesizeQuotesUnusualIdentifiers(t *testing.T) {
	opts := defaultOptions()
	opts.Table = "Sales Data"
	s := querygen.NewSynthesizer(opts, sqliteDialect())

	q := s.Synthesize(nlp.IntentCount, "how many")
	if q.SQL != `SELECT COUNT(*) AS total_count FROM "Sales Data"` {
		t.Errorf("sql = %q", q.SQL)
	}
}

func TestScenarioTotalSalesByRegion(t *testing.T) {
	text := "total sales by region"
	intent := nlp.NewClassifier().Classify(text)
	if intent != nlp.IntentAggregation {
		t.Fatalf("intent = %q", intent)
	}
	q := querygen.NewSynthesizer(defaultOptions(), sqliteDialect()).Synthesize(intent, text)
	if q.SQL != "SELECT region, SUM(amount) AS total_amount FROM sales GROUP BY region ORDER BY total_amount DESC" {
		t.Errorf("sql = %q", q.SQL)
	}
}

type fakeDescriber struct {
	listErr   error
	failTable string
	calls     atomic.Int32
}

func (f *fakeDescriber) ListTables(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []string{"sales", "customers"}, nil
}

func (f *fakeDescriber) DescribeTable(ctx context.Context, name string) (*service.TableSchema, error) {
	if name == f.failTable {
		return nil, service.ErrTableNotFound
	}
	return &service.TableSchema{
		TableName: name,
		Columns:   []service.ColumnDescriptor{{Name: "id", Type: "INTEGER", IsPrimaryKey: true}},
	}, nil
}

func TestSchemaRegistryLoad(t *testing.T) {
	d := &fakeDescriber{}
	r := querygen.NewSchemaRegistry(d)
	r.Load(context.Background())

	if got := r.Tables(); !reflect.DeepEqual(got, []string{"customers", "sales"}) {
		t.Errorf("tables = %v", got)
	}
	schema, ok := r.Table("sales")
	if !ok || schema.Columns[0].Name != "id" {
		t.Errorf("sales schema = %+v, %v", schema, ok)
	}
	if _, ok := r.Table("missing"); ok {
		t.Error("missing table should not be found")
	}

	r.Load(context.Background())
	if n := d.calls.Load(); n != 1 {
		t.Errorf("ListTables called %d times, want 1", n)
	}
}

func TestSchemaRegistryDegrades(t *testing.T) {
	r := querygen.NewSchemaRegistry(&fakeDescriber{listErr: errors.New("boom")})
	r.Load(context.Background())
	if got := r.Tables(); len(got) != 0 {
		t.Errorf("tables = %v, want empty", got)
	}

	partial := querygen.NewSchemaRegistry(&fakeDescriber{failTable: "customers"})
	partial.Load(context.Background())
	if got := partial.Tables(); !reflect.DeepEqual(got, []string{"sales"}) {
		t.Errorf("tables = %v, want [sales]", got)
	}
}

func TestSchemaRegistryConcurrentLoad(t *testing.T) {
	d := &fakeDescriber{}
	r := querygen.NewSchemaRegistry(d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Load(context.Background())
			_ = r.Tables()
		}()
	}
	wg.Wait()

	if n := d.calls.Load(); n != 1 {
		t.Errorf("ListTables called %d times, want 1", n)
	}
}
