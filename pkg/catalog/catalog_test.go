package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/connection"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/table"
)

var seed = []string{
	"CREATE TABLE parcels (id BIGINT NOT NULL, owner VARCHAR, area DOUBLE)",
	"CREATE TABLE owners (id BIGINT, name VARCHAR)",
	"CREATE VIEW big_parcels AS SELECT * FROM parcels WHERE area > 1000",
}

// setupTestCatalog creates a catalog over a seeded backend of the given kind.
func setupTestCatalog(t *testing.T, kind dialect.Kind) *Catalog {
	t.Helper()

	dsn := ""
	if kind == dialect.SQLite {
		dsn = filepath.Join(t.TempDir(), "catalog.db")
	}
	db, err := sql.Open(kind.DriverName(), dsn)
	if err != nil {
		t.Fatalf("failed to open %s: %v", kind, err)
	}
	mgr := connection.NewManager(db, kind, zerolog.Nop())
	t.Cleanup(func() { _ = mgr.Close() })

	if err := mgr.ExecScript(context.Background(), seed...); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return New(mgr)
}

// TestCatalog_Tables tests table listing on each embedded backend.
func TestCatalog_Tables(t *testing.T) {
	tests := []struct {
		kind dialect.Kind
		want []TableInfo
	}{
		{
			kind: dialect.DuckDB,
			want: []TableInfo{
				{Schema: "main", Name: "big_parcels", Type: "VIEW"},
				{Schema: "main", Name: "owners", Type: "BASE TABLE"},
				{Schema: "main", Name: "parcels", Type: "BASE TABLE"},
			},
		},
		{
			kind: dialect.SQLite,
			want: []TableInfo{
				{Schema: "main", Name: "big_parcels", Type: "VIEW"},
				{Schema: "main", Name: "owners", Type: "BASE TABLE"},
				{Schema: "main", Name: "parcels", Type: "BASE TABLE"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := setupTestCatalog(t, tt.kind)

			got, err := c.Tables(context.Background())
			if err != nil {
				t.Fatalf("Tables() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tables() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestCatalog_Columns tests column metadata on each embedded backend.
func TestCatalog_Columns(t *testing.T) {
	for _, kind := range []dialect.Kind{dialect.DuckDB, dialect.SQLite} {
		t.Run(string(kind), func(t *testing.T) {
			c := setupTestCatalog(t, kind)

			got, err := c.Columns(context.Background(), "PARCELS")
			if err != nil {
				t.Fatalf("Columns() error = %v", err)
			}

			type summary struct {
				Name     string
				Category string
				Nullable bool
				Position int64
			}
			var sums []summary
			for _, col := range got {
				sums = append(sums, summary{col.Name, col.Category, col.Nullable, col.Position})
			}
			want := []summary{
				{"id", table.TypeInteger, false, 1},
				{"owner", table.TypeText, true, 2},
				{"area", table.TypeReal, true, 3},
			}
			if diff := cmp.Diff(want, sums); diff != "" {
				t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestCatalog_Lookup tests reference resolution.
func TestCatalog_Lookup(t *testing.T) {
	c := setupTestCatalog(t, dialect.DuckDB)
	ctx := context.Background()

	tests := []struct {
		ref     string
		want    string
		missing bool
	}{
		{ref: "parcels", want: "main.parcels"},
		{ref: "Owners", want: "main.owners"},
		{ref: "main.big_parcels", want: "main.big_parcels"},
		{ref: "other.parcels", missing: true},
		{ref: "roads", missing: true},
		{ref: "", missing: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := c.Lookup(ctx, tt.ref)
			if tt.missing {
				if !errors.Is(err, ErrTableNotFound) {
					t.Errorf("Lookup(%q) error = %v, want ErrTableNotFound", tt.ref, err)
				}
				ok, err := c.HasTable(ctx, tt.ref)
				if err != nil || ok {
					t.Errorf("HasTable(%q) = %v, %v", tt.ref, ok, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) error = %v", tt.ref, err)
			}
			if got.QualifiedName() != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.ref, got.QualifiedName(), tt.want)
			}
		})
	}
}

// TestCatalog_ColumnsMissing tests columns of an unknown table.
func TestCatalog_ColumnsMissing(t *testing.T) {
	c := setupTestCatalog(t, dialect.SQLite)
	if _, err := c.Columns(context.Background(), "roads"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Columns() error = %v, want ErrTableNotFound", err)
	}
}

// TestTablesQuery tests the listing statement per backend.
func TestTablesQuery(t *testing.T) {
	tests := []struct {
		kind   dialect.Kind
		params int
		mysql  bool
	}{
		{kind: dialect.Postgres, params: len(systemSchemas)},
		{kind: dialect.MySQL, params: len(systemSchemas), mysql: true},
		{kind: dialect.Snowflake, params: len(systemSchemas)},
		{kind: dialect.SQLite, params: 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := tablesQuery(tt.kind)
			if err := f.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if len(f.Params) != tt.params {
				t.Errorf("params = %d, want %d", len(f.Params), tt.params)
			}
			if got := strings.Contains(f.Text, "DATABASE()"); got != tt.mysql {
				t.Errorf("DATABASE() filter = %v, want %v", got, tt.mysql)
			}
		})
	}
}
