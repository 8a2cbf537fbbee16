package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

// ElasticsearchService exposes indices as tables through the Elasticsearch SQL API.
type ElasticsearchService struct {
	client          *elasticsearch.Client
	allowedPatterns []string // index patterns that are permitted
}

// NewElasticsearchService creates an ES client using go-elasticsearch/v8
func NewElasticsearchService(addr, user, password string, maxRetries int, allowedPatterns []string) (*ElasticsearchService, error) {
	cfg := elasticsearch.Config{
		Addresses:  []string{addr},
		MaxRetries: maxRetries,
	}
	if user != "" {
		cfg.Username = user
		cfg.Password = password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &ElasticsearchService{
		client:          client,
		allowedPatterns: allowedPatterns,
	}, nil
}

// IsIndexAllowed returns true if the index matches any of the allowed patterns.
// If no patterns are configured, all indices are allowed.
func (s *ElasticsearchService) IsIndexAllowed(index string) bool {
	if len(s.allowedPatterns) == 0 {
		return true
	}
	for _, pattern := range s.allowedPatterns {
		matched, err := filepath.Match(pattern, index)
		if err == nil && matched {
			return true
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if prefix != pattern && strings.HasPrefix(index, prefix) {
			return true
		}
	}
	return false
}

// Connect is a no-op; the HTTP client connects per request.
func (s *ElasticsearchService) Connect(ctx context.Context) error {
	return s.TestConnection(ctx)
}

func (s *ElasticsearchService) Close() error { return nil }

// TestConnection pings the cluster
func (s *ElasticsearchService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &ConnectionError{Backend: "elasticsearch", Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &ConnectionError{Backend: "elasticsearch", Err: fmt.Errorf("ping error: %s", res.Status())}
	}
	return nil
}

type sqlResponse struct {
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Rows [][]any `json:"rows"`
}

// Execute runs sql through the _sql endpoint with positional params.
func (s *ElasticsearchService) Execute(ctx context.Context, sql string, args ...any) (*ResultTable, error) {
	body := map[string]any{
		"query":      sql,
		"fetch_size": 1000,
	}
	if len(args) > 0 {
		body["params"] = args
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.SQL.Query(
		bytes.NewReader(bodyBytes),
		s.client.SQL.Query.WithContext(ctx),
		s.client.SQL.Query.WithFormat("json"),
	)
	if err != nil {
		return nil, &ConnectionError{Backend: "elasticsearch", Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		_, derr := decodeBody(res.Body, res.Status())
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, &ConnectionError{Backend: "elasticsearch", Err: derr}
		}
		return nil, &QueryError{Backend: "elasticsearch", SQL: sql, Err: derr}
	}

	var parsed sqlResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, &QueryError{Backend: "elasticsearch", SQL: sql, Err: fmt.Errorf("decode response: %w", err)}
	}

	result := &ResultTable{
		Columns: make([]Column, len(parsed.Columns)),
		Rows:    make([]map[string]any, 0, len(parsed.Rows)),
	}
	for i, c := range parsed.Columns {
		result.Columns[i] = Column{Name: c.Name, Type: c.Type}
	}
	for _, r := range parsed.Rows {
		row := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(r) {
				row[col.Name] = r[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	log.Debug().Int("rows", result.Len()).Msg("elasticsearch sql executed")
	return result, nil
}

// ListTables returns indices, filtered by allowedPatterns if configured
func (s *ElasticsearchService) ListTables(ctx context.Context) ([]string, error) {
	res, err := s.client.Cat.Indices(
		s.client.Cat.Indices.WithContext(ctx),
		s.client.Cat.Indices.WithFormat("json"),
		s.client.Cat.Indices.WithH("index"),
	)
	if err != nil {
		return nil, &ConnectionError{Backend: "elasticsearch", Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("list indices error: %s", res.Status())
	}

	var all []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decode indices: %w", err)
	}

	var tables []string
	for _, idx := range all {
		name, _ := idx["index"].(string)
		if name == "" || strings.HasPrefix(name, ".") || !s.IsIndexAllowed(name) {
			continue
		}
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

// DescribeTable flattens the index mapping into columns.
func (s *ElasticsearchService) DescribeTable(ctx context.Context, name string) (*TableSchema, error) {
	if !s.IsIndexAllowed(name) {
		return nil, fmt.Errorf("access to index %q is not permitted", name)
	}
	res, err := s.client.Indices.GetMapping(
		s.client.Indices.GetMapping.WithContext(ctx),
		s.client.Indices.GetMapping.WithIndex(name),
	)
	if err != nil {
		return nil, &ConnectionError{Backend: "elasticsearch", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	raw, err := decodeBody(res.Body, res.Status())
	if err != nil {
		return nil, err
	}

	schema := &TableSchema{TableName: name}
	for _, idx := range raw {
		m, _ := idx.(map[string]any)
		mappings, _ := m["mappings"].(map[string]any)
		props, _ := mappings["properties"].(map[string]any)
		flattenProperties("", props, &schema.Columns)
	}
	sort.Slice(schema.Columns, func(i, j int) bool {
		return schema.Columns[i].Name < schema.Columns[j].Name
	})
	return schema, nil
}

func (s *ElasticsearchService) Dialect() Dialect {
	return questionDialect{name: "elasticsearch"}
}

func flattenProperties(prefix string, props map[string]any, out *[]ColumnDescriptor) {
	for field, def := range props {
		d, _ := def.(map[string]any)
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		if nested, ok := d["properties"].(map[string]any); ok {
			flattenProperties(path, nested, out)
			continue
		}
		typ, _ := d["type"].(string)
		*out = append(*out, ColumnDescriptor{Name: path, Type: typ, Nullable: true})
	}
}

func decodeBody(r io.Reader, status string) (map[string]any, error) {
	var result map[string]any
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}
