package query

import (
	"strings"

	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// Where adds a predicate. The first predicate opens the WHERE clause; later
// calls behave like And. The predicate may contain `?` placeholders, bound
// to params left to right after any parameters already accumulated.
func (q *Sourced) Where(predicate string, params ...any) *Sourced {
	return q.appendCondition("AND", predicate, params)
}

// And adds ` AND <predicate>`.
func (q *Sourced) And(predicate string, params ...any) *Sourced {
	return q.appendCondition("AND", predicate, params)
}

// Or adds ` OR <predicate>`. No parentheses are added around either side.
func (q *Sourced) Or(predicate string, params ...any) *Sourced {
	return q.appendCondition("OR", predicate, params)
}

// WhereFragment adds a pre-built fragment as a parenthesized predicate.
func (q *Sourced) WhereFragment(f fragment.Fragment) *Sourced {
	return q.appendGroup("AND", f)
}

// AndFragment adds ` AND (<fragment>)`.
func (q *Sourced) AndFragment(f fragment.Fragment) *Sourced {
	return q.appendGroup("AND", f)
}

// OrFragment adds ` OR (<fragment>)`.
func (q *Sourced) OrFragment(f fragment.Fragment) *Sourced {
	return q.appendGroup("OR", f)
}

// WhereIn adds `column IN (?, …)` with one parameter per value.
func (q *Sourced) WhereIn(column string, values ...any) *Sourced {
	column = strings.TrimSpace(column)
	if column == "" {
		return q.fail(sqlerr.Malformed("in requires a column"))
	}
	if len(values) == 0 {
		return q.fail(sqlerr.Malformed("in requires at least one value for %s", column))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return q.appendCondition("AND", column+" IN ("+marks+")", values)
}

// appendGroup adds f in parentheses so its own AND/OR terms stay grouped.
func (q *Sourced) appendGroup(op string, f fragment.Fragment) *Sourced {
	if f.IsEmpty() {
		return q.fail(sqlerr.Malformed("empty predicate"))
	}
	return q.appendFragment(op, f.Wrap())
}

func (q *Sourced) appendCondition(op, predicate string, params []any) *Sourced {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return q.fail(sqlerr.Malformed("empty predicate"))
	}
	if n := fragment.Count(predicate); n != len(params) {
		return q.fail(sqlerr.Malformed("predicate %q has %d placeholders but %d parameters", predicate, n, len(params)))
	}
	return q.appendFragment(op, fragment.New(predicate, params...))
}

func (q *Sourced) appendFragment(op string, f fragment.Fragment) *Sourced {
	if f.IsEmpty() {
		return q.fail(sqlerr.Malformed("empty predicate"))
	}
	if err := f.Validate(); err != nil {
		return q.fail(sqlerr.Malformed("predicate: %v", err))
	}
	out := q.clone()
	if out.cond.IsEmpty() {
		out.cond = f
	} else {
		out.cond = out.cond.Append(" " + op + " ").AppendFragment(f)
	}
	return out
}
