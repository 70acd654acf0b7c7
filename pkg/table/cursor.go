package table

import (
	"database/sql"
	"sync"

	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// Row is one row of a table view. Index is the row's position in the
// view's result, counted from zero.
type Row struct {
	Index   int64
	Values  []any
	columns []string
}

// Columns returns the column names of the row.
func (r Row) Columns() []string {
	return r.columns
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column name to value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.Values[i]
	}
	return m
}

// Cursor walks the rows of an open statement. It is not restartable: once
// Next returns false the statement has been released.
//
// Next, Row and Err belong to one goroutine. Close may be called from any
// goroutine; the view that handed the cursor out closes it when the view
// itself is closed.
type Cursor struct {
	rows    *sql.Rows
	query   string
	columns []Column
	names   []string
	index   int64
	row     Row

	mu     sync.Mutex
	err    error
	closed bool

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

func newCursor(rows *sql.Rows, query string, columns []Column, start int64, onClose func()) *Cursor {
	return &Cursor{
		rows:    rows,
		query:   query,
		columns: columns,
		names:   columnNames(columns),
		index:   start,
		onClose: onClose,
	}
}

// Next advances to the next row. It returns false after the last row, on
// error, or once the cursor is closed; in every case the underlying
// statement is closed.
func (c *Cursor) Next() bool {
	if c.stopped() {
		return false
	}

	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.fail(err)
			return false
		}
		_ = c.Close()
		return false
	}

	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.fail(err)
		return false
	}

	for i, val := range values {
		values[i] = convertValue(val, c.columns[i])
	}
	c.row = Row{Index: c.index, Values: values, columns: c.names}
	c.index++
	return true
}

// Row returns the current row.
func (c *Cursor) Row() Row {
	return c.row
}

// Err returns the error that stopped iteration, if any: a
// *sqlerr.CursorError for a fetch failure, or sqlerr.ErrClosed when the
// owning view was closed first.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the statement. It is safe to call more than once.
func (c *Cursor) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.rows != nil {
			c.closeErr = c.rows.Close()
		}
		if c.onClose != nil {
			c.onClose()
		}
	})
	return c.closeErr
}

func (c *Cursor) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil || c.closed || c.rows == nil
}

// interrupt closes a cursor that is still open and records err as the
// reason iteration stopped.
func (c *Cursor) interrupt(err error) {
	c.mu.Lock()
	if !c.closed && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	_ = c.Close()
}

// fail records a fetch error and releases the statement before the error
// reaches the caller. A cursor closed while fetching keeps its first error.
func (c *Cursor) fail(err error) {
	c.mu.Lock()
	if !c.closed && c.err == nil {
		c.err = &sqlerr.CursorError{Query: c.query, RowIndex: c.index, Err: err}
	}
	c.mu.Unlock()
	_ = c.Close()
}

// convertValue normalizes driver values. Byte slices become strings except
// for geometry columns, which keep their binary encoding.
func convertValue(val any, col Column) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case []byte:
		if col.Geometry || col.Type == TypeBinary {
			out := make([]byte, len(v))
			copy(out, v)
			return out
		}
		return string(v)
	default:
		return v
	}
}
