package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nnnkkk7/geoquery/pkg/datasource"
	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/table"
)

type queryOptions struct {
	parallel bool
	spatial  bool
	format   string
}

func newQueryCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <sql|table> [params...]",
		Short: "Run a statement and print the rows it returns",
		Long: `Run a statement against the configured backend.

A query or a bare table name prints its rows. Any other statement is
executed and prints nothing. Extra arguments bind to ? placeholders.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return runQuery(cmd, rootOpts, opts, args[0], args[1:])
		},
	}

	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "read rows through partitioned cursors")
	cmd.Flags().BoolVar(&opts.spatial, "spatial", false, "open a spatial view and print its extent")
	cmd.Flags().StringVar(&opts.format, "format", formatTable, "output format (table|json)")

	return cmd
}

func runQuery(cmd *cobra.Command, rootOpts *rootOptions, opts *queryOptions, text string, args []string) error {
	ctx := cmd.Context()
	ds, err := rootOpts.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ds.Close() }()

	stmtType := datasource.Classify(text)
	if stmtType != datasource.StatementTypeQuery && stmtType != datasource.StatementTypeTableName {
		if len(args) > 0 {
			return fmt.Errorf("%s statements take no parameters", stmtType)
		}
		return ds.Exec(ctx, text)
	}

	capability := table.Generic
	if opts.spatial {
		capability = table.Spatial
	}

	var tbl table.Table
	if stmtType == datasource.StatementTypeTableName {
		tbl, err = ds.Table(ctx, text, capability)
	} else {
		params := make([]any, len(args))
		for i, a := range args {
			params[i] = a
		}
		tbl, err = ds.Fragment(ctx, fragment.New(text, params...), capability)
	}
	if err != nil {
		return err
	}
	defer func() { _ = tbl.Close() }()

	if spatial, ok := tbl.(*table.SpatialTable); ok {
		if geom, found := spatial.GeometryColumn(); found {
			extent, err := spatial.Extent(ctx, geom.Name)
			if err != nil {
				return err
			}
			rootOpts.logger.Info().Str("column", geom.Name).Str("extent", extent).Msg("spatial extent")
		}
	}

	return renderTable(ctx, cmd.OutOrStdout(), tbl, opts.parallel, opts.format)
}
