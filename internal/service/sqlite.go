package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteService runs queries against a local SQLite database file.
type SQLiteService struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteService creates an unconnected SQLite executor for path.
// ":memory:" is accepted for tests.
func NewSQLiteService(path string) *SQLiteService {
	return &SQLiteService{path: path}
}

// OpenSQLite opens and pings a SQLite database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// Connect opens the database if it is not open yet.
func (s *SQLiteService) Connect(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SQLiteService) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := OpenSQLite(ctx, s.path)
	if err != nil {
		return nil, &ConnectionError{Backend: "sqlite", Err: err}
	}
	s.db = db
	log.Info().Str("path", s.path).Msg("connected to SQLite database")
	return db, nil
}

// DB exposes the underlying handle for seeding and the query log.
func (s *SQLiteService) DB(ctx context.Context) (*sql.DB, error) {
	return s.conn(ctx)
}

// Close releases the database handle.
func (s *SQLiteService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	log.Info().Msg("disconnected from SQLite database")
	return err
}

// TestConnection verifies the database answers a trivial query.
func (s *SQLiteService) TestConnection(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Execute runs a parameterized query and collects every row.
func (s *SQLiteService) Execute(ctx context.Context, query string, args ...any) (*ResultTable, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Backend: "sqlite", SQL: query, Err: err}
	}
	defer rows.Close()

	result, err := collectSQLRows(rows)
	if err != nil {
		return nil, &QueryError{Backend: "sqlite", SQL: query, Err: err}
	}
	log.Debug().Int("rows", result.Len()).Msg("sqlite query executed")
	return result, nil
}

// ListTables returns user tables in name order.
func (s *SQLiteService) ListTables(ctx context.Context) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable reads PRAGMA table_info for name.
func (s *SQLiteService) DescribeTable(ctx context.Context, name string) (*TableSchema, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	// PRAGMA arguments cannot be bound
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+s.Dialect().QuoteIdentifier(name)+")")
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", name, err)
	}
	defer rows.Close()

	schema := &TableSchema{TableName: name}
	for rows.Next() {
		var (
			cid     int
			col     ColumnDescriptor
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		col.Nullable = notNull == 0
		col.IsPrimaryKey = pk > 0
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return schema, nil
}

func (s *SQLiteService) Dialect() Dialect {
	return questionDialect{name: "sqlite"}
}

// collectSQLRows drains database/sql rows into a ResultTable.
func collectSQLRows(rows *sql.Rows) (*ResultTable, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	result := &ResultTable{
		Columns: make([]Column, len(types)),
		Rows:    make([]map[string]any, 0),
	}
	for i, ct := range types {
		result.Columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		row := make(map[string]any, len(types))
		for i, col := range result.Columns {
			row[col.Name] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}
