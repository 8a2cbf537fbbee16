package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryService runs queries against a single BigQuery dataset.
type BigQueryService struct {
	projectID       string
	datasetID       string
	credentialsFile string
	location        string

	mu     sync.Mutex
	client *bigquery.Client
}

// NewBigQueryService creates a BigQuery executor scoped to datasetID.
// The client is created on first use.
func NewBigQueryService(ctx context.Context, projectID, datasetID, credentialsFile, location string) (*BigQueryService, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("bigquery: project and dataset are required")
	}
	return &BigQueryService{
		projectID:       projectID,
		datasetID:       datasetID,
		credentialsFile: credentialsFile,
		location:        location,
	}, nil
}

func (s *BigQueryService) Connect(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *BigQueryService) conn(ctx context.Context) (*bigquery.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	var opts []option.ClientOption
	if s.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, s.projectID, opts...)
	if err != nil {
		return nil, &ConnectionError{Backend: "bigquery", Err: fmt.Errorf("bigquery.NewClient: %w", err)}
	}
	if s.location != "" {
		client.Location = s.location
	}
	s.client = client
	log.Info().Str("project", s.projectID).Str("dataset", s.datasetID).Msg("connected to BigQuery")
	return client, nil
}

// Close releases the BigQuery client
func (s *BigQueryService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// TestConnection verifies BigQuery connectivity
func (s *BigQueryService) TestConnection(ctx context.Context) error {
	_, err := s.Execute(ctx, "SELECT 1")
	return err
}

func (s *BigQueryService) query(client *bigquery.Client, sql string, args []any) *bigquery.Query {
	q := client.Query(sql)
	q.DefaultProjectID = s.projectID
	q.DefaultDatasetID = s.datasetID
	for _, a := range args {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Value: a})
	}
	return q
}

// Execute runs a standard SQL query with positional parameters.
func (s *BigQueryService) Execute(ctx context.Context, sql string, args ...any) (*ResultTable, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	job, err := s.query(client, sql, args).Run(ctx)
	if err != nil {
		return nil, s.classify(sql, fmt.Errorf("query run: %w", err))
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, s.classify(sql, fmt.Errorf("job wait: %w", err))
	}
	if err := status.Err(); err != nil {
		return nil, &QueryError{Backend: "bigquery", SQL: sql, Err: err}
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, s.classify(sql, fmt.Errorf("job read: %w", err))
	}

	result := &ResultTable{Rows: make([]map[string]any, 0)}
	if stats := job.LastStatus().Statistics; stats != nil {
		result.BytesProcessed = stats.TotalBytesProcessed
	}

	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &QueryError{Backend: "bigquery", SQL: sql, Err: fmt.Errorf("read row: %w", err)}
		}
		if result.Columns == nil {
			result.Columns = schemaColumns(it.Schema)
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = bigQueryValue(v)
		}
		result.Rows = append(result.Rows, m)
	}
	if result.Columns == nil {
		result.Columns = schemaColumns(it.Schema)
	}

	log.Debug().
		Int("rows", result.Len()).
		Int64("bytes_processed", result.BytesProcessed).
		Dur("duration", time.Since(start)).
		Msg("bigquery query executed")
	return result, nil
}

// EstimateBytes dry-runs sql and reports the bytes BigQuery would scan.
func (s *BigQueryService) EstimateBytes(ctx context.Context, sql string, args ...any) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	q := s.query(client, sql, args)
	q.DryRun = true
	job, err := q.Run(ctx)
	if err != nil {
		return 0, s.classify(sql, fmt.Errorf("dry run: %w", err))
	}
	if stats := job.LastStatus().Statistics; stats != nil {
		return stats.TotalBytesProcessed, nil
	}
	return 0, nil
}

// ListTables returns the tables of the configured dataset.
func (s *BigQueryService) ListTables(ctx context.Context) ([]string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var tables []string
	it := client.Dataset(s.datasetID).Tables(ctx)
	for {
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, tbl.TableID)
	}
	return tables, nil
}

// DescribeTable reads the table schema from its metadata.
func (s *BigQueryService) DescribeTable(ctx context.Context, name string) (*TableSchema, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := client.Dataset(s.datasetID).Table(name).Metadata(ctx)
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		return nil, fmt.Errorf("get table %q.%q: %w", s.datasetID, name, err)
	}

	schema := &TableSchema{TableName: name}
	for _, f := range meta.Schema {
		schema.Columns = append(schema.Columns, ColumnDescriptor{
			Name:     f.Name,
			Type:     string(f.Type),
			Nullable: !f.Required,
		})
	}
	return schema, nil
}

func (s *BigQueryService) Dialect() Dialect {
	return bigQueryDialect{}
}

// classify separates rejected queries from transport failures.
func (s *BigQueryService) classify(sql string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusBadRequest {
		return &QueryError{Backend: "bigquery", SQL: sql, Err: err}
	}
	return &ConnectionError{Backend: "bigquery", Err: err}
}

type bigQueryDialect struct{}

func (bigQueryDialect) Name() string           { return "bigquery" }
func (bigQueryDialect) Placeholder(int) string { return "?" }
func (bigQueryDialect) QuoteIdentifier(name string) string {
	return "`" + name + "`"
}

func schemaColumns(schema bigquery.Schema) []Column {
	cols := make([]Column, 0, len(schema))
	for _, f := range schema {
		cols = append(cols, Column{Name: f.Name, Type: string(f.Type)})
	}
	return cols
}

// bigQueryValue flattens NUMERIC and civil types into JSON-friendly values.
func bigQueryValue(v bigquery.Value) any {
	switch x := v.(type) {
	case *big.Rat:
		f, _ := x.Float64()
		return f
	case fmt.Stringer:
		return x.String()
	default:
		return normalizeValue(v)
	}
}
