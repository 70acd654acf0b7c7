package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/pterm/pterm"

	"github.com/nnnkkk7/geoquery/pkg/table"
	"github.com/nnnkkk7/geoquery/server/types"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var validFormats = []string{formatTable, formatJSON}

func isValidFormat(format string) bool {
	return slices.Contains(validFormats, format)
}

// renderTable streams every row of tbl to w.
func renderTable(ctx context.Context, w io.Writer, tbl table.Table, parallel bool, format string) error {
	var rowSet [][]any
	for row, err := range tbl.Stream(ctx, parallel) {
		if err != nil {
			return err
		}
		rowSet = append(rowSet, row.Values)
	}

	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(types.RowsResponse{
			Success:  true,
			Table:    tbl.Identity().String(),
			Query:    tbl.Fragment().Text,
			Parallel: parallel,
			RowType:  types.RowType(tbl.Columns()),
			RowSet:   rowSet,
			Returned: int64(len(rowSet)),
		})
	}

	cols := tbl.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
	}
	rows := make([][]string, len(rowSet))
	for i, values := range rowSet {
		rows[i] = make([]string, len(values))
		for j, v := range values {
			rows[i][j] = formatValue(v)
		}
	}
	if err := printTable(w, headers, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rowSet))
	return err
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	default:
		return fmt.Sprint(val)
	}
}
