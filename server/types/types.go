// Package types defines the JSON bodies of the HTTP query service.
package types

import "github.com/nnnkkk7/geoquery/pkg/table"

// Health API Types

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Views   int    `json:"views"`
}

// Catalog API Types

type TableResponse struct {
	Schema    string `json:"schema,omitempty"`
	Name      string `json:"name"`
	TableType string `json:"tableType"`
}

type ListTablesResponse struct {
	Success bool            `json:"success"`
	Tables  []TableResponse `json:"tables"`
}

type ColumnResponse struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Category string `json:"category"`
	Nullable bool   `json:"nullable"`
	Position int64  `json:"position"`
}

type ListColumnsResponse struct {
	Success bool             `json:"success"`
	Table   string           `json:"table"`
	Columns []ColumnResponse `json:"columns"`
}

// Query API Types

type CountResponse struct {
	Success bool   `json:"success"`
	Table   string `json:"table"`
	Count   int64  `json:"count"`
}

// ColumnMetadata describes a column of a returned row set.
type ColumnMetadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	DBType    string `json:"dbType,omitempty"`
	Length    int64  `json:"length,omitempty"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
	Geometry  bool   `json:"geometry,omitempty"`
}

// RowType describes the columns of a table view.
func RowType(cols []table.Column) []ColumnMetadata {
	out := make([]ColumnMetadata, len(cols))
	for i, c := range cols {
		out[i] = ColumnMetadata{
			Name:      c.Name,
			Type:      c.Type,
			DBType:    c.DatabaseType,
			Length:    c.Length,
			Precision: c.Precision,
			Scale:     c.Scale,
			Nullable:  c.Nullable,
			Geometry:  c.Geometry,
		}
	}
	return out
}

type RowsResponse struct {
	Success  bool             `json:"success"`
	Table    string           `json:"table"`
	Query    string           `json:"query"`
	Parallel bool             `json:"parallel"`
	RowType  []ColumnMetadata `json:"rowtype"`
	RowSet   [][]any          `json:"rowset"`
	Returned int64            `json:"returned"`
}
