package table

import (
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
)

// Identity names the relation a table view reads from. It is resolved once
// when the view is built and never changes afterwards.
type Identity struct {
	Schema string
	Name   string
	Kind   dialect.Kind
	// Derived is set when the view reads from a query rather than a single
	// table; Name then holds a generated alias.
	Derived bool
}

// String returns the qualified name.
func (id Identity) String() string {
	if id.Schema == "" {
		return id.Name
	}
	return id.Schema + "." + id.Name
}

// ResolveIdentity derives the identity of a fragment. A SELECT reading a
// single plain table yields that table, folded to the backend's identifier
// case. Anything else, including text the parser cannot handle, yields a
// generated alias.
func ResolveIdentity(kind dialect.Kind, f fragment.Fragment) Identity {
	derived := Identity{Name: fragment.NewAlias(), Kind: kind, Derived: true}

	text := strings.TrimSpace(f.Text)
	if text == "" {
		return derived
	}

	stmt, err := sqlparser.Parse(text)
	if err != nil {
		// Backend-specific syntax is still executable; only the identity is
		// unknown.
		return derived
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok || len(sel.From) != 1 {
		return derived
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return derived
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok || name.Name.IsEmpty() {
		return derived
	}

	id := Identity{Name: kind.Fold(name.Name.String()), Kind: kind}
	if !name.Qualifier.IsEmpty() {
		id.Schema = kind.Fold(name.Qualifier.String())
	}
	return id
}

// identityForName builds the identity of a bare table reference.
func identityForName(kind dialect.Kind, ref string) Identity {
	schema, name := dialect.ParseTableReference(ref)
	id := Identity{Name: kind.Fold(name), Kind: kind}
	if schema != "" {
		id.Schema = kind.Fold(schema)
	}
	return id
}
