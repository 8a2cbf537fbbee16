package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresService runs queries against PostgreSQL through a pgx pool.
type PostgresService struct {
	dsn string

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewPostgresService(dsn string) *PostgresService {
	return &PostgresService{dsn: dsn}
}

func (s *PostgresService) Connect(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *PostgresService) conn(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return s.pool, nil
	}
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return nil, &ConnectionError{Backend: "postgres", Err: fmt.Errorf("connect to postgres: %w", err)}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Backend: "postgres", Err: fmt.Errorf("ping: %w", err)}
	}
	s.pool = pool
	log.Info().Msg("connected to PostgreSQL")
	return pool, nil
}

func (s *PostgresService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *PostgresService) TestConnection(ctx context.Context) error {
	pool, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return &ConnectionError{Backend: "postgres", Err: err}
	}
	return nil
}

// Execute runs a query using $n placeholders.
func (s *PostgresService) Execute(ctx context.Context, sql string, args ...any) (*ResultTable, error) {
	pool, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.classify(sql, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	typeMap := rows.Conn().TypeMap()
	result := &ResultTable{
		Columns: make([]Column, len(fieldDescs)),
		Rows:    make([]map[string]any, 0),
	}
	for i, fd := range fieldDescs {
		typeName := strconv.FormatUint(uint64(fd.DataTypeOID), 10)
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		result.Columns[i] = Column{Name: fd.Name, Type: typeName}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &QueryError{Backend: "postgres", SQL: sql, Err: fmt.Errorf("failed to read row values: %w", err)}
		}
		row := make(map[string]any, len(values))
		for i, col := range result.Columns {
			row[col.Name] = postgresValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(sql, err)
	}
	return result, nil
}

func (s *PostgresService) ListTables(ctx context.Context) ([]string, error) {
	pool, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (s *PostgresService) DescribeTable(ctx context.Context, name string) (*TableSchema, error) {
	pool, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable = 'YES', c.column_default,
		       EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage k
		             ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND tc.table_schema = c.table_schema
		             AND tc.table_name = c.table_name
		             AND k.column_name = c.column_name
		       )
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, name)
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", name, err)
	}
	defer rows.Close()

	schema := &TableSchema{TableName: name}
	for rows.Next() {
		var col ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
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

func (s *PostgresService) Dialect() Dialect { return postgresDialect{} }

// classify maps server-side errors to QueryError; anything else means the
// server could not be reached.
func (s *PostgresService) classify(sql string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Backend: "postgres", SQL: sql, Err: err}
	}
	return &ConnectionError{Backend: "postgres", Err: err}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{strings.TrimSpace(name)}.Sanitize()
}

func postgresValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	default:
		return normalizeValue(v)
	}
}
