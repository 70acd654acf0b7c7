package table

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/config"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// Querier executes a statement and returns its cursor. The query layer
// never serializes calls on a Querier; callers that share one connection
// across goroutines must use a backend or pool that allows it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tracker is notified when views are opened and closed.
type Tracker interface {
	Track(handle string, t Table)
	Untrack(handle string)
}

// Materializer executes fragments and wraps their cursors in table views.
type Materializer struct {
	conn     Querier
	kind     dialect.Kind
	logger   zerolog.Logger
	minChunk int64
	workers  int
	tracker  Tracker
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger handed to every view.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Materializer) { m.logger = logger }
}

// WithMinChunk sets the default partition size lower bound for parallel
// streams.
func WithMinChunk(n int64) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.minChunk = n
		}
	}
}

// WithWorkers sets the default number of concurrent partitions for
// parallel streams.
func WithWorkers(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithTracker registers every opened view with t.
func WithTracker(t Tracker) Option {
	return func(m *Materializer) { m.tracker = t }
}

// NewMaterializer creates a materializer over conn for a backend kind.
func NewMaterializer(conn Querier, kind dialect.Kind, opts ...Option) *Materializer {
	m := &Materializer{
		conn:     conn,
		kind:     kind,
		logger:   zerolog.Nop(),
		minChunk: config.DefaultMinChunk,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the backend kind.
func (m *Materializer) Kind() dialect.Kind {
	return m.kind
}

// Materialize executes f and returns a view of the requested capability.
//
// The statement runs once; a backend failure is returned as a
// *sqlerr.ExecutionError and never retried. A capability the backend cannot
// serve fails with sqlerr.ErrUnsupportedCapability before anything runs.
// ctx governs the view's primary cursor.
func (m *Materializer) Materialize(ctx context.Context, f fragment.Fragment, c Capability) (Table, error) {
	if err := f.Validate(); err != nil {
		return nil, sqlerr.Malformed("%v", err)
	}
	if !supports(m.kind, c) {
		return nil, fmt.Errorf("%s on %s: %w", c, m.kind, sqlerr.ErrUnsupportedCapability)
	}

	v, err := m.open(ctx, f, ResolveIdentity(m.kind, f))
	if err != nil {
		return nil, err
	}
	return m.track(wrap(v, c)), nil
}

// Table materializes every row of a named table.
func (m *Materializer) Table(ctx context.Context, name string, c Capability) (Table, error) {
	if name == "" {
		return nil, sqlerr.Malformed("table name cannot be empty")
	}
	if !supports(m.kind, c) {
		return nil, fmt.Errorf("%s on %s: %w", c, m.kind, sqlerr.ErrUnsupportedCapability)
	}

	f := fragment.New("SELECT * FROM " + name)
	v, err := m.open(ctx, f, identityForName(m.kind, name))
	if err != nil {
		return nil, err
	}
	return m.track(wrap(v, c)), nil
}

// open runs the statement and builds the shared view state.
func (m *Materializer) open(ctx context.Context, f fragment.Fragment, id Identity) (*view, error) {
	bound := f.Rebind(m.kind.PlaceholderStyle())

	rows, err := m.conn.Query(ctx, bound.Text, bound.Params...)
	if err != nil {
		m.logger.Debug().Str("query", f.Text).Err(err).Msg("statement rejected")
		return nil, &sqlerr.ExecutionError{Query: f.Text, Err: err}
	}

	cols, err := inferColumns(rows)
	if err != nil {
		_ = rows.Close()
		return nil, &sqlerr.ExecutionError{Query: f.Text, Err: fmt.Errorf("failed to get columns: %w", err)}
	}

	handle := uuid.New().String()
	done, cancel := context.WithCancel(context.Background())
	v := &view{
		handle:   handle,
		mat:      m,
		frag:     f,
		identity: id,
		columns:  cols,
		rows:     rows,
		done:     done,
		cancel:   cancel,
		logger:   m.logger.With().Str("view", handle).Str("table", id.String()).Logger(),
	}
	v.logger.Debug().Str("query", f.Text).Int("columns", len(cols)).Msg("view opened")
	return v, nil
}

// track registers t with the tracker, if any.
func (m *Materializer) track(t Table) Table {
	if m.tracker != nil {
		m.tracker.Track(t.Handle(), t)
	}
	return t
}

func supports(kind dialect.Kind, c Capability) bool {
	switch c {
	case Generic:
		return true
	case Spatial:
		return kind.SupportsSpatial()
	default:
		return false
	}
}
