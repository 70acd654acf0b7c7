package table

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// SpatialTable is a table view with geometry-aware operations.
type SpatialTable struct {
	*view
}

// Capability returns Spatial.
func (t *SpatialTable) Capability() Capability { return Spatial }

// AsType implements Table.
func (t *SpatialTable) AsType(ctx context.Context, c Capability) (Table, error) {
	return t.asType(ctx, Spatial, c)
}

// GeometryColumns returns the columns holding geometries.
func (t *SpatialTable) GeometryColumns() []Column {
	var out []Column
	for _, c := range t.columns {
		if c.Geometry {
			out = append(out, c)
		}
	}
	return out
}

// GeometryColumn returns the first geometry column.
func (t *SpatialTable) GeometryColumn() (Column, bool) {
	cols := t.GeometryColumns()
	if len(cols) == 0 {
		return Column{}, false
	}
	return cols[0], true
}

// ExtentQuery returns the statement Extent runs for column. An empty column
// selects the first geometry column.
func (t *SpatialTable) ExtentQuery(column string) (fragment.Fragment, error) {
	if column == "" {
		col, ok := t.GeometryColumn()
		if !ok {
			return fragment.Fragment{}, sqlerr.Malformed("table %s has no geometry column", t.identity)
		}
		column = col.Name
	}

	expr, ok := t.mat.kind.ExtentExpr(t.mat.kind.Quote(column))
	if !ok {
		return fragment.Fragment{}, fmt.Errorf("extent on %s: %w", t.mat.kind, sqlerr.ErrUnsupportedCapability)
	}
	return fragment.New("SELECT "+expr+" FROM ").
		AppendFragment(t.frag.Wrap().AsSource(fragment.NewAlias())), nil
}

// Extent returns the bounding box of a geometry column as WKT. An empty
// result set gives an empty string.
func (t *SpatialTable) Extent(ctx context.Context, column string) (string, error) {
	q, err := t.ExtentQuery(column)
	if err != nil {
		return "", err
	}
	bound := q.Rebind(t.mat.kind.PlaceholderStyle())

	rows, err := t.mat.conn.Query(ctx, bound.Text, bound.Params...)
	if err != nil {
		return "", &sqlerr.ExecutionError{Query: q.Text, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var wkt sql.NullString
	if rows.Next() {
		if err := rows.Scan(&wkt); err != nil {
			return "", &sqlerr.CursorError{Query: q.Text, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return "", &sqlerr.CursorError{Query: q.Text, Err: err}
	}
	return wkt.String, nil
}
