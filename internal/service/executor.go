package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cortexai/chatbi/internal/config"
)

// Executor is the storage capability the pipeline runs derived queries against.
// Implementations connect lazily; Execute on a closed executor reconnects.
type Executor interface {
	Connect(ctx context.Context) error
	Close() error
	TestConnection(ctx context.Context) error

	// Execute runs a read query with positional parameters bound by the driver.
	Execute(ctx context.Context, query string, args ...any) (*ResultTable, error)

	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (*TableSchema, error)

	Dialect() Dialect
}

// Dialect covers the syntax differences the query synthesizer must respect.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th parameter (1-based).
	Placeholder(n int) string
	QuoteIdentifier(name string) string
}

// Column describes a result column with the backend's type name.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultTable is the row-oriented output of an executed query.
type ResultTable struct {
	Columns        []Column         `json:"columns"`
	Rows           []map[string]any `json:"rows"`
	BytesProcessed int64            `json:"bytes_processed,omitempty"`
}

// ColumnNames returns the column names in result order.
func (t *ResultTable) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows; nil tables have none.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnDescriptor is one column of a described table.
type ColumnDescriptor struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default"`
	IsPrimaryKey bool    `json:"primary_key"`
}

// TableSchema is the description of a single table.
type TableSchema struct {
	TableName string             `json:"table_name"`
	Columns   []ColumnDescriptor `json:"columns"`
}

var (
	ErrConnection     = errors.New("storage unreachable")
	ErrQueryExecution = errors.New("query execution failed")
	ErrTableNotFound  = errors.New("table not found")
)

// ConnectionError reports that the backend could not be reached.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError reports that the backend rejected or failed a query.
type QueryError struct {
	Backend string
	SQL     string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v (sql: %s)", e.Backend, e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQueryExecution }

// NewExecutor builds the backend selected by cfg.StorageType.
func NewExecutor(ctx context.Context, cfg *config.Config) (Executor, error) {
	switch cfg.StorageType {
	case "sqlite":
		return NewSQLiteService(cfg.SQLitePath), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		return NewPostgresService(cfg.PostgresDSN), nil
	case "bigquery":
		if cfg.GCPProjectID == "" || cfg.BigQueryDataset == "" {
			return nil, fmt.Errorf("bigquery storage requires GCP_PROJECT_ID and BIGQUERY_DATASET")
		}
		return NewBigQueryService(ctx, cfg.GCPProjectID, cfg.BigQueryDataset, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation)
	case "elasticsearch":
		return NewElasticsearchService(
			cfg.ElasticsearchAddress,
			cfg.ElasticsearchUser,
			cfg.ElasticsearchPassword,
			cfg.ElasticsearchMaxRetries,
			cfg.ESAllowedPatterns,
		)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// questionDialect is shared by backends using "?" markers and double-quoted identifiers.
type questionDialect struct{ name string }

func (d questionDialect) Name() string          { return d.name }
func (d questionDialect) Placeholder(int) string { return "?" }
func (d questionDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// normalizeValue converts driver-specific scalars into JSON-friendly values.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
