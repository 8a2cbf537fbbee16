package querygen

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cortexai/chatbi/internal/service"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Describer is the part of a storage executor the registry reads from.
type Describer interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (*service.TableSchema, error)
}

// SchemaRegistry caches table schemas for the lifetime of the process.
// It is filled once by Load and read-only afterwards.
type SchemaRegistry struct {
	describer Describer

	mu     sync.RWMutex
	tables map[string]service.TableSchema
	loaded bool
	sf     singleflight.Group // concurrent first loads share one fetch
}

func NewSchemaRegistry(d Describer) *SchemaRegistry {
	return &SchemaRegistry{
		describer: d,
		tables:    make(map[string]service.TableSchema),
	}
}

// Load fetches every table schema once. Failures are logged and leave the
// registry empty or partial; they never propagate.
func (r *SchemaRegistry) Load(ctx context.Context) {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return
	}

	r.sf.Do("schemas", func() (interface{}, error) {
		r.mu.RLock()
		loaded := r.loaded
		r.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		start := time.Now()
		tables := make(map[string]service.TableSchema)
		names, err := r.describer.ListTables(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("schema load failed: could not list tables")
		}
		for _, name := range names {
			schema, err := r.describer.DescribeTable(ctx, name)
			if err != nil {
				log.Warn().Err(err).Str("table", name).Msg("schema load failed: describe table")
				continue
			}
			tables[name] = *schema
		}

		r.mu.Lock()
		r.tables = tables
		r.loaded = true
		r.mu.Unlock()

		log.Info().
			Int("tables", len(tables)).
			Dur("fetch_ms", time.Since(start)).
			Msg("schema registry loaded")
		return nil, nil
	})
}

// Tables returns the cached table names in sorted order.
func (r *SchemaRegistry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the cached schema for name.
func (r *SchemaRegistry) Table(name string) (service.TableSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}
