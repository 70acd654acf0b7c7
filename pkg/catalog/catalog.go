// Package catalog lists the tables of a data source and their columns,
// reading information_schema or, on SQLite, sqlite_master.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nnnkkk7/geoquery/pkg/connection"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/table"
)

// ErrTableNotFound is returned when a table reference matches no table.
var ErrTableNotFound = errors.New("table not found")

// Catalog reads table metadata from the backend.
type Catalog struct {
	mgr *connection.Manager
}

// TableInfo describes one table or view.
type TableInfo struct {
	Schema string
	Name   string
	Type   string // BASE TABLE, VIEW
}

// QualifiedName returns schema.name, or name when there is no schema.
func (t TableInfo) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnInfo describes one declared column.
type ColumnInfo struct {
	Name     string
	DataType string
	Category string // normalized with table.MapType
	Nullable bool
	Position int64
}

// New creates a catalog over mgr.
func New(mgr *connection.Manager) *Catalog {
	return &Catalog{mgr: mgr}
}

// Tables lists the user tables and views, ordered by schema and name.
func (c *Catalog) Tables(ctx context.Context) ([]TableInfo, error) {
	kind := c.mgr.Kind()
	q := tablesQuery(kind)

	rows, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		var schema sql.NullString
		if err := rows.Scan(&schema, &t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		t.Schema = schema.String
		t.Type = strings.ToUpper(t.Type)
		if t.Type == "TABLE" {
			t.Type = "BASE TABLE"
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// Lookup resolves a table reference (`table` or `schema.table`) to a listed
// table. Matching ignores case, since every supported backend treats
// unquoted identifiers case-insensitively.
func (c *Catalog) Lookup(ctx context.Context, ref string) (TableInfo, error) {
	schema, name := dialect.ParseTableReference(ref)
	if name == "" {
		return TableInfo{}, fmt.Errorf("%q: %w", ref, ErrTableNotFound)
	}

	tables, err := c.Tables(ctx)
	if err != nil {
		return TableInfo{}, err
	}
	for _, t := range tables {
		if !strings.EqualFold(t.Name, name) {
			continue
		}
		if schema != "" && !strings.EqualFold(t.Schema, schema) {
			continue
		}
		return t, nil
	}
	return TableInfo{}, fmt.Errorf("%q: %w", ref, ErrTableNotFound)
}

// HasTable reports whether ref names a listed table.
func (c *Catalog) HasTable(ctx context.Context, ref string) (bool, error) {
	_, err := c.Lookup(ctx, ref)
	if errors.Is(err, ErrTableNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Columns returns the declared columns of a table in ordinal order.
func (c *Catalog) Columns(ctx context.Context, ref string) ([]ColumnInfo, error) {
	t, err := c.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	q := columnsQuery(c.mgr.Kind(), t)
	rows, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", t.QualifiedName(), err)
	}
	defer func() { _ = rows.Close() }()

	var cols []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.Category = table.MapType(col.DataType)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", t.QualifiedName(), err)
	}
	return cols, nil
}

func (c *Catalog) query(ctx context.Context, f fragment.Fragment) (*sql.Rows, error) {
	bound := f.Rebind(c.mgr.Kind().PlaceholderStyle())
	return c.mgr.Query(ctx, bound.Text, bound.Params...)
}

// systemSchemas are never listed.
var systemSchemas = []string{"INFORMATION_SCHEMA", "PG_CATALOG", "PG_TOAST", "MYSQL", "PERFORMANCE_SCHEMA", "SYS"}

func tablesQuery(kind dialect.Kind) fragment.Fragment {
	if kind == dialect.SQLite {
		return fragment.New(`SELECT 'main', name, type FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
			ORDER BY name`)
	}

	params := make([]any, len(systemSchemas))
	for i, s := range systemSchemas {
		params[i] = s
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")

	f := fragment.New(`SELECT table_schema, table_name, table_type FROM information_schema.tables
			WHERE UPPER(table_schema) NOT IN (`+marks+`)`, params...)
	if kind == dialect.MySQL {
		f = f.Append(" AND table_schema = DATABASE()")
	}
	return f.Append(" ORDER BY table_schema, table_name")
}

func columnsQuery(kind dialect.Kind, t TableInfo) fragment.Fragment {
	if kind == dialect.SQLite {
		return fragment.New(`SELECT name, type, CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END, cid + 1
			FROM pragma_table_info(?) ORDER BY cid`, t.Name)
	}

	f := fragment.New(`SELECT column_name, data_type, is_nullable, ordinal_position
			FROM information_schema.columns WHERE table_name = ?`, t.Name)
	if t.Schema != "" {
		f = f.Append(" AND table_schema = ?", t.Schema)
	}
	return f.Append(" ORDER BY ordinal_position")
}
