// Package handlers provides HTTP handlers for the geoquery service.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/catalog"
	"github.com/nnnkkk7/geoquery/pkg/config"
	"github.com/nnnkkk7/geoquery/pkg/datasource"
	"github.com/nnnkkk7/geoquery/pkg/query"
	"github.com/nnnkkk7/geoquery/server/apierror"
	"github.com/nnnkkk7/geoquery/server/types"
)

// TableHandler serves catalog and row requests against one data source.
type TableHandler struct {
	ds       *datasource.DataSource
	rowLimit int
	logger   zerolog.Logger
}

// NewTableHandler creates a table handler. rowLimit is the number of rows
// returned when a request sets no limit.
func NewTableHandler(ds *datasource.DataSource, rowLimit int, logger zerolog.Logger) *TableHandler {
	if rowLimit < 1 {
		rowLimit = config.DefaultRowLimit
	}
	return &TableHandler{ds: ds, rowLimit: rowLimit, logger: logger}
}

// Health handles GET /health.
func (h *TableHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:  "ok",
		Backend: string(h.ds.Kind()),
		Views:   len(h.ds.Views()),
	}
	status := http.StatusOK
	if err := h.ds.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// ListTables handles GET /api/v1/tables.
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.ds.Catalog().Tables(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := types.ListTablesResponse{Success: true, Tables: make([]types.TableResponse, len(tables))}
	for i, t := range tables {
		resp.Tables[i] = types.TableResponse{Schema: t.Schema, Name: t.Name, TableType: t.Type}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListColumns handles GET /api/v1/tables/{table}/columns.
func (h *TableHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	info, err := h.lookup(r)
	if err != nil {
		h.sendError(w, err)
		return
	}

	cols, err := h.ds.Catalog().Columns(r.Context(), info.QualifiedName())
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := types.ListColumnsResponse{
		Success: true,
		Table:   info.QualifiedName(),
		Columns: make([]types.ColumnResponse, len(cols)),
	}
	for i, c := range cols {
		resp.Columns[i] = types.ColumnResponse{
			Name:     c.Name,
			DataType: c.DataType,
			Category: c.Category,
			Nullable: c.Nullable,
			Position: c.Position,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Count handles GET /api/v1/tables/{table}/count?where=.
func (h *TableHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.lookup(r)
	if err != nil {
		h.sendError(w, err)
		return
	}

	q := h.ds.Select().From(info.QualifiedName())
	if where := r.URL.Query().Get("where"); where != "" {
		q = q.Where(where)
	}
	tbl, err := q.AsTable(ctx)
	if err != nil {
		h.sendError(w, err)
		return
	}
	defer func() { _ = tbl.Close() }()

	n, err := tbl.RowCount(ctx)
	if err != nil {
		h.sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CountResponse{Success: true, Table: info.QualifiedName(), Count: n})
}

// Rows handles GET /api/v1/tables/{table}/rows.
//
// Query parameters: columns (comma separated), where (predicate text),
// orderBy and dir, limit, and parallel to read through partitioned cursors.
// Column names must exist in the table.
func (h *TableHandler) Rows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	info, err := h.lookup(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	known, err := h.columnSet(r, info)
	if err != nil {
		h.sendError(w, err)
		return
	}

	var columns []string
	if raw := params.Get("columns"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if !known[strings.ToLower(c)] {
				h.sendError(w, apierror.NewInvalidParameterError("columns", "unknown column "+strconv.Quote(c)))
				return
			}
			columns = append(columns, c)
		}
	}

	limit := h.rowLimit
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > config.MaxRowLimit {
			h.sendError(w, apierror.NewInvalidParameterError("limit", "must be between 1 and "+strconv.Itoa(config.MaxRowLimit)))
			return
		}
		limit = n
	}

	parallel := false
	if raw := params.Get("parallel"); raw != "" {
		parallel, err = strconv.ParseBool(raw)
		if err != nil {
			h.sendError(w, apierror.NewInvalidParameterError("parallel", "must be a boolean"))
			return
		}
	}

	q := h.ds.Select(columns...).From(info.QualifiedName())
	if where := params.Get("where"); where != "" {
		q = q.Where(where)
	}
	if orderBy := params.Get("orderBy"); orderBy != "" {
		if !known[strings.ToLower(orderBy)] {
			h.sendError(w, apierror.NewInvalidParameterError("orderBy", "unknown column "+strconv.Quote(orderBy)))
			return
		}
		q = q.OrderBy(orderBy, query.Direction(params.Get("dir")))
	}
	q = q.Limit(int64(limit))

	f, err := q.Build()
	if err != nil {
		h.sendError(w, err)
		return
	}
	tbl, err := q.AsTable(ctx)
	if err != nil {
		h.sendError(w, err)
		return
	}
	defer func() { _ = tbl.Close() }()

	resp := types.RowsResponse{
		Success:  true,
		Table:    info.QualifiedName(),
		Query:    f.Text,
		Parallel: parallel,
		RowType:  types.RowType(tbl.Columns()),
		RowSet:   [][]any{},
	}
	for row, err := range tbl.Stream(ctx, parallel) {
		if err != nil {
			h.sendError(w, err)
			return
		}
		resp.RowSet = append(resp.RowSet, row.Values)
	}
	resp.Returned = int64(len(resp.RowSet))
	writeJSON(w, http.StatusOK, resp)
}

// lookup resolves the {table} URL parameter through the catalog, so only
// existing tables reach the query builder.
func (h *TableHandler) lookup(r *http.Request) (catalog.TableInfo, error) {
	name := chi.URLParam(r, "table")
	info, err := h.ds.Catalog().Lookup(r.Context(), name)
	if err != nil {
		return catalog.TableInfo{}, err
	}
	return info, nil
}

func (h *TableHandler) columnSet(r *http.Request, info catalog.TableInfo) (map[string]bool, error) {
	cols, err := h.ds.Catalog().Columns(r.Context(), info.QualifiedName())
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[strings.ToLower(c.Name)] = true
	}
	return set, nil
}

// sendError writes err as a coded error response.
func (h *TableHandler) sendError(w http.ResponseWriter, err error) {
	apiErr := apierror.FromError(err)
	if apiErr.Status() >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, apiErr.Status(), apiErr.ToResponse())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
