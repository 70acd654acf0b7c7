package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTablesCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List tables, or the columns of one table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ds, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			if len(args) == 0 {
				tables, err := ds.Catalog().Tables(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(tables))
				for i, t := range tables {
					rows[i] = []string{t.Schema, t.Name, t.Type}
				}
				return printTable(cmd.OutOrStdout(), []string{"schema", "name", "type"}, rows)
			}

			info, err := ds.Catalog().Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			cols, err := ds.Catalog().Columns(ctx, info.QualifiedName())
			if err != nil {
				return err
			}
			rows := make([][]string, len(cols))
			for i, c := range cols {
				rows[i] = []string{strconv.FormatInt(c.Position, 10), c.Name, c.DataType, c.Category, fmt.Sprint(c.Nullable)}
			}
			return printTable(cmd.OutOrStdout(), []string{"#", "name", "type", "category", "nullable"}, rows)
		},
	}

	return cmd
}
