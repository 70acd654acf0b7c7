// Package dialect describes the backend quirks the query layer depends on:
// driver names, identifier case folding, placeholder style and spatial
// support.
package dialect

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/nnnkkk7/geoquery/pkg/fragment"
)

// Kind identifies a backend.
type Kind string

// Supported backends.
const (
	DuckDB    Kind = "duckdb"
	Postgres  Kind = "postgres"
	MySQL     Kind = "mysql"
	SQLite    Kind = "sqlite"
	Snowflake Kind = "snowflake"
)

// Case is the folding a backend applies to unquoted identifiers.
type Case int

const (
	CasePreserve Case = iota
	CaseUpper
	CaseLower
)

// Kinds returns every supported backend.
func Kinds() []Kind {
	return []Kind{DuckDB, Postgres, MySQL, SQLite, Snowflake}
}

// Parse converts a name (or common alias) to a Kind.
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "duckdb", "duck":
		return DuckDB, nil
	case "postgres", "postgresql", "postgis", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3", "spatialite":
		return SQLite, nil
	case "snowflake":
		return Snowflake, nil
	default:
		return "", fmt.Errorf("unknown backend kind: %q", name)
	}
}

// DriverName returns the database/sql driver name for the backend.
func (k Kind) DriverName() string {
	switch k {
	case SQLite:
		return "sqlite3"
	default:
		return string(k)
	}
}

// IdentifierCase returns how the backend folds unquoted identifiers.
func (k Kind) IdentifierCase() Case {
	switch k {
	case Snowflake:
		return CaseUpper
	case Postgres:
		return CaseLower
	default:
		return CasePreserve
	}
}

// PlaceholderStyle returns the positional placeholder style of the backend.
func (k Kind) PlaceholderStyle() fragment.Style {
	if k == Postgres {
		return fragment.StyleDollar
	}
	return fragment.StyleQuestion
}

// SupportsSpatial reports whether the backend can serve spatial tables.
func (k Kind) SupportsSpatial() bool {
	switch k {
	case DuckDB, Postgres, MySQL, SQLite:
		return true
	default:
		return false
	}
}

// Fold normalizes an unquoted identifier the way the backend stores it.
//
// Examples:
//   - Snowflake.Fold("parcels") -> "PARCELS"
//   - Postgres.Fold("Parcels") -> "parcels"
//   - DuckDB.Fold("Parcels") -> "Parcels"
func (k Kind) Fold(ident string) string {
	ident = norm.NFC.String(strings.TrimSpace(ident))
	switch k.IdentifierCase() {
	case CaseUpper:
		return cases.Upper(language.Und).String(ident)
	case CaseLower:
		return cases.Lower(language.Und).String(ident)
	default:
		return ident
	}
}

// Quote quotes an identifier for the backend.
func (k Kind) Quote(ident string) string {
	if k == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ExtentExpr returns an expression computing the WKT bounding box of a
// geometry column, or false when the backend has no spatial support.
func (k Kind) ExtentExpr(column string) (string, bool) {
	switch k {
	case Postgres:
		return fmt.Sprintf("ST_AsText(ST_Extent(%s))", column), true
	case DuckDB:
		return fmt.Sprintf("ST_AsText(ST_Extent_Agg(%s))", column), true
	case MySQL:
		return fmt.Sprintf("ST_AsText(ST_Envelope(ST_Collect(%s)))", column), true
	case SQLite:
		return fmt.Sprintf("AsText(Extent(%s))", column), true
	default:
		return "", false
	}
}

// ParseTableReference splits a table reference into schema and table
// components, handling `table`, `schema.table` and `catalog.schema.table`.
// The catalog, when present, stays part of the schema.
func ParseTableReference(ref string) (schema, table string) {
	ref = strings.TrimSpace(ref)
	idx := strings.LastIndex(ref, ".")
	if idx < 0 {
		return "", ref
	}
	return ref[:idx], ref[idx+1:]
}
