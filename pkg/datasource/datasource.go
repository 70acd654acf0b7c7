// Package datasource opens a backend by kind and ties together its
// connection, materializer, query builder, catalog and live view registry.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	_ "github.com/snowflakedb/gosnowflake"

	"github.com/nnnkkk7/geoquery/pkg/catalog"
	"github.com/nnnkkk7/geoquery/pkg/config"
	"github.com/nnnkkk7/geoquery/pkg/connection"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/query"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
	"github.com/nnnkkk7/geoquery/pkg/table"
)

// DataSource is an open backend.
type DataSource struct {
	kind     dialect.Kind
	conn     *connection.Manager
	mat      *table.Materializer
	builder  *query.Builder
	catalog  *catalog.Catalog
	registry *Registry
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

type options struct {
	logger       zerolog.Logger
	minChunk     int64
	workers      int
	maxOpenConns int
}

// Option configures a DataSource.
type Option func(*options)

// WithLogger sets the logger of the data source and its views.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMinChunk sets the default partition size lower bound for parallel
// streams.
func WithMinChunk(n int64) Option {
	return func(o *options) { o.minChunk = n }
}

// WithWorkers sets the default number of concurrent partitions. Zero means
// one per CPU.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// Open connects to a backend of the given kind.
func Open(ctx context.Context, kind dialect.Kind, dsn string, opts ...Option) (*DataSource, error) {
	db, err := sql.Open(kind.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", kind, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", kind, err)
	}
	return New(db, kind, opts...), nil
}

// OpenConfig connects to the backend described by cfg.
func OpenConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*DataSource, error) {
	kind, err := dialect.Parse(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return Open(ctx, kind, cfg.DSN,
		WithLogger(logger),
		WithMinChunk(cfg.MinChunk),
		WithWorkers(cfg.Workers),
	)
}

// New wraps an already opened pool. The data source owns db from then on.
func New(db *sql.DB, kind dialect.Kind, opts ...Option) *DataSource {
	o := options{logger: zerolog.Nop(), minChunk: config.DefaultMinChunk}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	logger := o.logger.With().Str("backend", string(kind)).Logger()
	conn := connection.NewManager(db, kind, logger)
	registry := NewRegistry()
	mat := table.NewMaterializer(conn, kind,
		table.WithLogger(logger),
		table.WithMinChunk(o.minChunk),
		table.WithWorkers(o.workers),
		table.WithTracker(registry),
	)

	return &DataSource{
		kind:     kind,
		conn:     conn,
		mat:      mat,
		builder:  query.NewBuilder(mat),
		catalog:  catalog.New(conn),
		registry: registry,
		logger:   logger,
	}
}

// Kind returns the backend kind.
func (d *DataSource) Kind() dialect.Kind { return d.kind }

// Conn returns the connection manager.
func (d *DataSource) Conn() *connection.Manager { return d.conn }

// Catalog returns the table catalog.
func (d *DataSource) Catalog() *catalog.Catalog { return d.catalog }

// Materializer returns the materializer every view of the data source is
// built with.
func (d *DataSource) Materializer() *table.Materializer { return d.mat }

// Views returns the views that are still open.
func (d *DataSource) Views() []ViewInfo { return d.registry.List() }

// View returns a live view by handle.
func (d *DataSource) View(handle string) (table.Table, bool) { return d.registry.Get(handle) }

// Select starts a query chain.
func (d *DataSource) Select(columns ...string) *query.Selected {
	return d.builder.Select(columns...)
}

// Table opens a view over ref, which is either a table reference or a query
// returning rows.
func (d *DataSource) Table(ctx context.Context, ref string, c table.Capability) (table.Table, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	switch t := Classify(ref); t {
	case StatementTypeTableName:
		return d.mat.Table(ctx, ref, c)
	case StatementTypeQuery:
		return d.mat.Materialize(ctx, fragment.New(ref), c)
	default:
		return nil, sqlerr.Malformed("%s statement does not return rows", t)
	}
}

// Query opens a generic view over a query with positional parameters.
func (d *DataSource) Query(ctx context.Context, text string, params ...any) (*table.GenericTable, error) {
	t, err := d.Fragment(ctx, fragment.New(text, params...), table.Generic)
	if err != nil {
		return nil, err
	}
	return t.(*table.GenericTable), nil
}

// Fragment opens a view over a pre-built fragment.
func (d *DataSource) Fragment(ctx context.Context, f fragment.Fragment, c table.Capability) (table.Table, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.mat.Materialize(ctx, f, c)
}

// Exec runs statements that return no rows, in order.
func (d *DataSource) Exec(ctx context.Context, statements ...string) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.conn.ExecScript(ctx, statements...)
}

// ExpireViews closes views that have been open longer than ttl, checking
// every ttl/2 until ctx is done or the data source closes. A view closed
// this way fails its pending reads with ErrClosed. It blocks, so callers
// run it on its own goroutine.
func (d *DataSource) ExpireViews(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(ttl/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if d.checkOpen() != nil {
			return
		}
		n, err := d.registry.CloseOlderThan(ttl)
		if err != nil {
			d.logger.Warn().Err(err).Msg("failed to close expired views")
		}
		if n > 0 {
			d.logger.Debug().Int("views", n).Dur("ttl", ttl).Msg("expired views closed")
		}
	}
}

// Ping verifies the backend is reachable.
func (d *DataSource) Ping(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.conn.Ping(ctx)
}

// Close closes every view still open, then the connection pool. It is safe
// to call more than once.
func (d *DataSource) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	live := d.registry.Len()
	viewErr := d.registry.CloseAll()
	connErr := d.conn.Close()
	d.logger.Debug().Int("views", live).Msg("data source closed")
	return errors.Join(viewErr, connErr)
}

func (d *DataSource) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return sqlerr.ErrClosed
	}
	return nil
}
