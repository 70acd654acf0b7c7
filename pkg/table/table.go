// Package table exposes query results as lazy table views: row counts,
// column metadata, sequential cursors and partitioned parallel streams,
// over a generic or a spatial capability.
package table

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// Capability is the variant of a table view.
type Capability int

const (
	Generic Capability = iota
	Spatial
)

// String returns the capability name.
func (c Capability) String() string {
	switch c {
	case Generic:
		return "generic"
	case Spatial:
		return "spatial"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Table is a lazily materialized query result.
//
// A Table owns its statement; Close must be called to release it. Rows can
// be read once, through Iterator or Stream. Reading them again requires a
// new view, for example from AsType.
type Table interface {
	Capability() Capability
	Kind() dialect.Kind
	Identity() Identity
	Fragment() fragment.Fragment
	Handle() string

	// RowCount runs a count query on first use and caches the result.
	RowCount(ctx context.Context) (int64, error)
	Columns() []Column

	// Iterator returns the view's cursor. It fails with sqlerr.ErrConsumed
	// once the rows have been handed out.
	Iterator() (*Cursor, error)

	// Stream returns the rows as a lazy sequence. With parallel set, rows
	// are read by concurrent partitions and arrive in no particular order.
	Stream(ctx context.Context, parallel bool, opts ...StreamOption) iter.Seq2[Row, error]

	// AsType returns a new view over the same fragment and identity with
	// the requested capability, or nil when the backend cannot serve it.
	AsType(ctx context.Context, c Capability) (Table, error)

	Close() error
}

// GenericTable is a table view with no spatial operations.
type GenericTable struct {
	*view
}

// Capability returns Generic.
func (t *GenericTable) Capability() Capability { return Generic }

// AsType implements Table.
func (t *GenericTable) AsType(ctx context.Context, c Capability) (Table, error) {
	return t.asType(ctx, Generic, c)
}

// view is the state shared by every capability.
type view struct {
	handle   string
	mat      *Materializer
	frag     fragment.Fragment
	identity Identity
	columns  []Column
	logger   zerolog.Logger

	mu       sync.Mutex
	rows     *sql.Rows
	cursor   *Cursor // handed out by Iterator, until it closes
	consumed bool
	closed   bool
	count    int64
	counted  bool

	// done is canceled by Close; streams derive their partition contexts
	// from it.
	done    context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// Kind returns the backend kind.
func (v *view) Kind() dialect.Kind { return v.mat.kind }

// Identity returns the resolved table identity.
func (v *view) Identity() Identity { return v.identity }

// Fragment returns the query the view was built from.
func (v *view) Fragment() fragment.Fragment { return v.frag }

// Handle returns the view's unique handle.
func (v *view) Handle() string { return v.handle }

// Columns returns the column metadata captured when the view was opened.
func (v *view) Columns() []Column {
	out := make([]Column, len(v.columns))
	copy(out, v.columns)
	return out
}

// RowCount implements Table.
func (v *view) RowCount(ctx context.Context) (int64, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, sqlerr.ErrClosed
	}
	if v.counted {
		n := v.count
		v.mu.Unlock()
		return n, nil
	}
	v.mu.Unlock()

	count := fragment.New("SELECT COUNT(*) FROM ").AppendFragment(v.frag.Wrap().AsSource(fragment.NewAlias()))
	bound := count.Rebind(v.mat.kind.PlaceholderStyle())

	rows, err := v.mat.conn.Query(ctx, bound.Text, bound.Params...)
	if err != nil {
		return 0, &sqlerr.ExecutionError{Query: count.Text, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, &sqlerr.CursorError{Query: count.Text, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, &sqlerr.CursorError{Query: count.Text, Err: err}
	}

	v.mu.Lock()
	v.count, v.counted = n, true
	v.mu.Unlock()
	return n, nil
}

// Iterator implements Table. The view keeps ownership of the cursor:
// closing the view closes it, and its Err then reports sqlerr.ErrClosed.
func (v *view) Iterator() (*Cursor, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows, err := v.claimLocked()
	if err != nil {
		return nil, err
	}
	var cur *Cursor
	cur = newCursor(rows, v.frag.Text, v.columns, 0, func() { v.release(cur) })
	v.cursor = cur
	return cur, nil
}

// claim hands out the primary statement exactly once.
func (v *view) claim() (*sql.Rows, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.claimLocked()
}

func (v *view) claimLocked() (*sql.Rows, error) {
	if v.closed {
		return nil, sqlerr.ErrClosed
	}
	if v.consumed {
		return nil, sqlerr.ErrConsumed
	}
	v.consumed = true
	rows := v.rows
	v.rows = nil
	return rows, nil
}

// release forgets cur once it has closed.
func (v *view) release(cur *Cursor) {
	v.mu.Lock()
	if v.cursor == cur {
		v.cursor = nil
	}
	v.mu.Unlock()
}

// Close implements Table. A cursor handed out by Iterator is closed, and
// in-flight parallel streams are canceled; Close returns once their cursors
// are released.
func (v *view) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	rows := v.rows
	v.rows = nil
	cur := v.cursor
	v.cursor = nil
	v.mu.Unlock()

	v.cancel()
	if cur != nil {
		cur.interrupt(sqlerr.ErrClosed)
	}
	v.streams.Wait()

	var err error
	if rows != nil {
		err = rows.Close()
	}
	if v.mat.tracker != nil {
		v.mat.tracker.Untrack(v.handle)
	}
	v.logger.Debug().Msg("view closed")
	return err
}

// conversion builds a view of a target capability from fresh view state.
type conversion func(v *view) Table

// conversions lists the supported capability pairs. A missing pair means
// the conversion is not offered.
var conversions = map[Capability]map[Capability]conversion{
	Generic: {
		Generic: toGeneric,
		Spatial: toSpatial,
	},
	Spatial: {
		Generic: toGeneric,
		Spatial: toSpatial,
	},
}

func toGeneric(v *view) Table { return &GenericTable{view: v} }

func toSpatial(v *view) Table { return &SpatialTable{view: v} }

func wrap(v *view, c Capability) Table {
	if c == Spatial {
		return toSpatial(v)
	}
	return toGeneric(v)
}

// asType reopens the view's fragment under another capability. Unsupported
// targets give nil without touching the backend.
func (v *view) asType(ctx context.Context, from, to Capability) (Table, error) {
	convert, ok := conversions[from][to]
	if !ok || !supports(v.mat.kind, to) {
		v.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("capability not available")
		return nil, nil
	}

	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return nil, sqlerr.ErrClosed
	}

	nv, err := v.mat.open(ctx, v.frag, v.identity)
	if err != nil {
		return nil, err
	}
	return v.mat.track(convert(nv)), nil
}
