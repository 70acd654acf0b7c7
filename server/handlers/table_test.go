package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/datasource"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/server/apierror"
	"github.com/nnnkkk7/geoquery/server/types"
)

// setupTestRouter creates a router over an in-memory DuckDB data source
// seeded with parcels.
func setupTestRouter(t *testing.T) (http.Handler, *datasource.DataSource) {
	t.Helper()

	ctx := context.Background()
	ds, err := datasource.Open(ctx, dialect.DuckDB, "", datasource.WithMinChunk(2), datasource.WithWorkers(2))
	if err != nil {
		t.Fatalf("failed to open data source: %v", err)
	}
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Errorf("failed to close data source: %v", err)
		}
	})

	err = ds.Exec(ctx,
		"CREATE TABLE parcels (id BIGINT NOT NULL, owner VARCHAR, area BIGINT)",
		"INSERT INTO parcels VALUES (1, 'X', 50), (2, 'X', 150), (3, 'Y', 250), (4, 'Z', 350), (5, 'Y', 450)",
	)
	if err != nil {
		t.Fatalf("failed to seed parcels: %v", err)
	}

	return NewRouter(NewTableHandler(ds, 3, zerolog.Nop())), ds
}

func doGet(t *testing.T, h http.Handler, path string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

// TestTableHandler_Health tests the health endpoint.
func TestTableHandler_Health(t *testing.T) {
	router, ds := setupTestRouter(t)

	rec := doGet(t, router, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	got := decode[types.HealthResponse](t, rec)
	want := types.HealthResponse{Status: "ok", Backend: "duckdb", Views: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	if err := ds.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rec = doGet(t, router, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestTableHandler_ListTables tests the table listing endpoint.
func TestTableHandler_ListTables(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doGet(t, router, "/api/v1/tables", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[types.ListTablesResponse](t, rec)
	want := types.ListTablesResponse{
		Success: true,
		Tables:  []types.TableResponse{{Schema: "main", Name: "parcels", TableType: "BASE TABLE"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
}

// TestTableHandler_ListColumns tests the column listing endpoint.
func TestTableHandler_ListColumns(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doGet(t, router, "/api/v1/tables/PARCELS/columns", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[types.ListColumnsResponse](t, rec)

	if got.Table != "main.parcels" {
		t.Errorf("Table = %q, want %q", got.Table, "main.parcels")
	}
	var names []string
	for _, c := range got.Columns {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"id", "owner", "area"}, names); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if got.Columns[0].Nullable {
		t.Error("id should not be nullable")
	}
	if got.Columns[0].Category != "INTEGER" {
		t.Errorf("id category = %q, want INTEGER", got.Columns[0].Category)
	}
}

// TestTableHandler_Count tests the count endpoint with and without a filter.
func TestTableHandler_Count(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name   string
		params url.Values
		want   int64
	}{
		{name: "All", want: 5},
		{name: "Filtered", params: url.Values{"where": {"area > 200"}}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, router, "/api/v1/tables/parcels/count", tt.params)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			got := decode[types.CountResponse](t, rec)
			if got.Count != tt.want {
				t.Errorf("Count = %d, want %d", got.Count, tt.want)
			}
		})
	}
}

// TestTableHandler_Rows tests row reads.
func TestTableHandler_Rows(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name      string
		params    url.Values
		wantQuery string
		wantIDs   []float64
	}{
		{
			name:      "DefaultLimit",
			params:    url.Values{"orderBy": {"id"}},
			wantQuery: "SELECT * FROM main.parcels ORDER BY id ASC LIMIT 3",
			wantIDs:   []float64{1, 2, 3},
		},
		{
			name: "FilteredDescending",
			params: url.Values{
				"columns": {"id,owner"},
				"where":   {"owner = 'Y'"},
				"orderBy": {"id"},
				"dir":     {"desc"},
				"limit":   {"10"},
			},
			wantQuery: "SELECT id, owner FROM main.parcels WHERE owner = 'Y' ORDER BY id DESC LIMIT 10",
			wantIDs:   []float64{5, 3},
		},
		{
			name:      "Parallel",
			params:    url.Values{"columns": {"id"}, "orderBy": {"id"}, "limit": {"5"}, "parallel": {"true"}},
			wantQuery: "SELECT id FROM main.parcels ORDER BY id ASC LIMIT 5",
			wantIDs:   []float64{1, 2, 3, 4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, router, "/api/v1/tables/parcels/rows", tt.params)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			got := decode[types.RowsResponse](t, rec)

			if got.Query != tt.wantQuery {
				t.Errorf("Query = %q, want %q", got.Query, tt.wantQuery)
			}
			if got.Returned != int64(len(tt.wantIDs)) {
				t.Errorf("Returned = %d, want %d", got.Returned, len(tt.wantIDs))
			}

			var ids []float64
			for _, row := range got.RowSet {
				ids = append(ids, row[0].(float64))
			}
			if got.Parallel {
				sort.Float64s(ids)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if got.RowType[0].Name != "id" || got.RowType[0].Type != "INTEGER" {
				t.Errorf("RowType[0] = %+v", got.RowType[0])
			}
		})
	}
}

// TestTableHandler_Errors tests error responses.
func TestTableHandler_Errors(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name     string
		path     string
		params   url.Values
		status   int
		wantCode string
	}{
		{
			name:     "UnknownTable",
			path:     "/api/v1/tables/roads/rows",
			status:   http.StatusNotFound,
			wantCode: apierror.CodeObjectNotFound,
		},
		{
			name:     "UnknownTableColumns",
			path:     "/api/v1/tables/roads/columns",
			status:   http.StatusNotFound,
			wantCode: apierror.CodeObjectNotFound,
		},
		{
			name:     "UnknownColumn",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"columns": {"id,secret"}},
			status:   http.StatusBadRequest,
			wantCode: apierror.CodeInvalidParameter,
		},
		{
			name:     "UnknownOrderBy",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"orderBy": {"id; DROP TABLE parcels"}},
			status:   http.StatusBadRequest,
			wantCode: apierror.CodeInvalidParameter,
		},
		{
			name:     "BadDirection",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"orderBy": {"id"}, "dir": {"sideways"}},
			status:   http.StatusBadRequest,
			wantCode: apierror.CodeSQLCompilationError,
		},
		{
			name:     "LimitTooLarge",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"limit": {"1000001"}},
			status:   http.StatusBadRequest,
			wantCode: apierror.CodeInvalidParameter,
		},
		{
			name:     "BadParallel",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"parallel": {"maybe"}},
			status:   http.StatusBadRequest,
			wantCode: apierror.CodeInvalidParameter,
		},
		{
			name:     "BadPredicate",
			path:     "/api/v1/tables/parcels/rows",
			params:   url.Values{"where": {"no_such_column > 1"}},
			status:   http.StatusUnprocessableEntity,
			wantCode: apierror.CodeSQLExecutionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, router, tt.path, tt.params)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.status, rec.Body.String())
			}
			got := decode[apierror.ErrorResponse](t, rec)
			if got.Success {
				t.Error("Success = true")
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

// TestTableHandler_ViewsReleased tests that every request closes its view.
func TestTableHandler_ViewsReleased(t *testing.T) {
	router, ds := setupTestRouter(t)

	for _, path := range []string{"/api/v1/tables/parcels/rows", "/api/v1/tables/parcels/count"} {
		if rec := doGet(t, router, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
	if n := len(ds.Views()); n != 0 {
		t.Errorf("open views = %d, want 0", n)
	}
}
