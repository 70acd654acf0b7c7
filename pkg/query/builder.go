// Package query provides the fluent SELECT builder: Select, From, then any
// mix of conditions and fetch options, ending in Build or a table terminal.
//
// Every stage is a distinct type, so calls can only be made in the order
// Select → From → conditions/options. Builder values are immutable: each
// call returns a new stage and the receiver can be reused to branch a chain.
// Nothing reaches the backend until AsTable or AsSpatialTable is called.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
	"github.com/nnnkkk7/geoquery/pkg/table"
)

// Materializer executes a finished fragment.
type Materializer interface {
	Materialize(ctx context.Context, f fragment.Fragment, c table.Capability) (table.Table, error)
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Builder starts query chains.
type Builder struct {
	mat Materializer
}

// NewBuilder creates a builder whose terminals run on mat. A nil mat gives
// a builder that can only Build.
func NewBuilder(mat Materializer) *Builder {
	return &Builder{mat: mat}
}

// Select starts a query projecting columns. No columns selects `*`.
func (b *Builder) Select(columns ...string) *Selected {
	return &Selected{mat: b.mat, columns: nonEmpty(columns)}
}

// Selected is a query with a projection and no source yet.
type Selected struct {
	mat      Materializer
	columns  []string
	distinct bool
}

// Distinct makes the query SELECT DISTINCT.
func (s *Selected) Distinct() *Selected {
	out := *s
	out.distinct = true
	return &out
}

// From sets the source tables, rendered as `FROM t1, t2, …`. Blank names are
// ignored; when none remain the query is malformed.
func (s *Selected) From(tables ...string) *Sourced {
	q := s.sourced()
	names := nonEmpty(tables)
	if len(names) == 0 {
		q.err = sqlerr.Malformed("from requires at least one table name")
		return q
	}
	q.source = fragment.New(strings.Join(names, ", "))
	return q
}

// FromFragment uses a query as the source. It is parenthesized if needed
// and given a generated alias.
func (s *Selected) FromFragment(f fragment.Fragment) *Sourced {
	q := s.sourced()
	if f.IsEmpty() {
		q.err = sqlerr.Malformed("from requires a non-empty subquery")
		return q
	}
	if err := f.Validate(); err != nil {
		q.err = sqlerr.Malformed("subquery: %v", err)
		return q
	}
	if !f.IsSubquery() {
		f = f.Wrap()
	}
	q.source = f.AsSource(fragment.NewAlias())
	return q
}

func (s *Selected) sourced() *Sourced {
	return &Sourced{mat: s.mat, columns: s.columns, distinct: s.distinct}
}

// Sourced is a query with a source. Conditions and fetch options may be
// added in any order; they are rendered in canonical clause order.
type Sourced struct {
	mat      Materializer
	columns  []string
	distinct bool
	source   fragment.Fragment
	cond     fragment.Fragment
	groupBy  []string
	orderBy  []string
	limit    *int64
	offset   *int64
	err      error
}

// clone copies the stage so the receiver stays unchanged.
func (q *Sourced) clone() *Sourced {
	out := *q
	out.groupBy = append([]string(nil), q.groupBy...)
	out.orderBy = append([]string(nil), q.orderBy...)
	return &out
}

// fail records the first builder error.
func (q *Sourced) fail(err error) *Sourced {
	out := q.clone()
	if out.err == nil {
		out.err = err
	}
	return out
}

// GroupBy appends GROUP BY columns.
func (q *Sourced) GroupBy(columns ...string) *Sourced {
	cols := nonEmpty(columns)
	if len(cols) == 0 {
		return q.fail(sqlerr.Malformed("group by requires at least one column"))
	}
	out := q.clone()
	out.groupBy = append(out.groupBy, cols...)
	return out
}

// OrderBy appends an ORDER BY term.
func (q *Sourced) OrderBy(column string, dir Direction) *Sourced {
	column = strings.TrimSpace(column)
	if column == "" {
		return q.fail(sqlerr.Malformed("order by requires a column"))
	}
	d := Direction(strings.ToUpper(string(dir)))
	switch d {
	case "":
		d = Asc
	case Asc, Desc:
	default:
		return q.fail(sqlerr.Malformed("invalid sort direction %q", dir))
	}
	out := q.clone()
	out.orderBy = append(out.orderBy, column+" "+string(d))
	return out
}

// Limit caps the number of rows. A later call replaces an earlier one.
func (q *Sourced) Limit(n int64) *Sourced {
	if n < 0 {
		return q.fail(sqlerr.Malformed("limit cannot be negative: %d", n))
	}
	out := q.clone()
	out.limit = &n
	return out
}

// Offset skips rows. A later call replaces an earlier one.
func (q *Sourced) Offset(n int64) *Sourced {
	if n < 0 {
		return q.fail(sqlerr.Malformed("offset cannot be negative: %d", n))
	}
	out := q.clone()
	out.offset = &n
	return out
}

// Build renders the query.
func (q *Sourced) Build() (fragment.Fragment, error) {
	if q.err != nil {
		return fragment.Fragment{}, q.err
	}

	var head strings.Builder
	head.WriteString("SELECT ")
	if q.distinct {
		head.WriteString("DISTINCT ")
	}
	if len(q.columns) == 0 {
		head.WriteString("*")
	} else {
		head.WriteString(strings.Join(q.columns, ", "))
	}
	head.WriteString(" FROM ")

	f := fragment.New(head.String()).AppendFragment(q.source)
	if !q.cond.IsEmpty() {
		f = f.Append(" WHERE ").AppendFragment(q.cond)
	}
	if len(q.groupBy) > 0 {
		f = f.Append(" GROUP BY " + strings.Join(q.groupBy, ", "))
	}
	if len(q.orderBy) > 0 {
		f = f.Append(" ORDER BY " + strings.Join(q.orderBy, ", "))
	}
	if q.limit != nil {
		f = f.Append(" LIMIT " + strconv.FormatInt(*q.limit, 10))
	}
	if q.offset != nil {
		f = f.Append(" OFFSET " + strconv.FormatInt(*q.offset, 10))
	}

	if err := f.Validate(); err != nil {
		return fragment.Fragment{}, sqlerr.Malformed("%v", err)
	}
	return f, nil
}

// String renders the query text, or the builder error.
func (q *Sourced) String() string {
	f, err := q.Build()
	if err != nil {
		return err.Error()
	}
	return f.Text
}

// AsTable executes the query and returns a generic table view.
func (q *Sourced) AsTable(ctx context.Context) (*table.GenericTable, error) {
	t, err := q.materialize(ctx, table.Generic)
	if err != nil {
		return nil, err
	}
	return t.(*table.GenericTable), nil
}

// AsSpatialTable executes the query and returns a spatial table view.
func (q *Sourced) AsSpatialTable(ctx context.Context) (*table.SpatialTable, error) {
	t, err := q.materialize(ctx, table.Spatial)
	if err != nil {
		return nil, err
	}
	return t.(*table.SpatialTable), nil
}

func (q *Sourced) materialize(ctx context.Context, c table.Capability) (table.Table, error) {
	f, err := q.Build()
	if err != nil {
		return nil, err
	}
	if q.mat == nil {
		return nil, fmt.Errorf("query has no materializer")
	}
	return q.mat.Materialize(ctx, f, c)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
