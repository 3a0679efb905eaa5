package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy tables between the remote service and a local dump file",
	Long: "Copy every table to a dump file (--to) for backup or offline fixtures, " +
		"or from a dump file (--from) to seed a fresh backend. Rows are upserted " +
		"by each table's conflict key.",
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		from, _ := cmd.Flags().GetString("from")
		if (to == "") == (from == "") {
			return errors.New("pass exactly one of --to or --from")
		}
		names, _ := cmd.Flags().GetStringSlice("tables")
		if len(names) == 0 {
			names = schema.AllTables()
		}

		return run(cmd, func(ctx context.Context, a *app) error {
			var (
				copied map[string]int
				err    error
			)
			if to != "" {
				dump := tables.NewMemTable(nil)
				copied, err = tables.Mirror(ctx, a.remote, dump, names, schema.ConflictKeys, a.cfg.Remote.APIKey)
				if err == nil {
					err = tables.WriteDump(to, dump.Dump())
				}
			} else {
				data, rerr := tables.ReadDump(from)
				if rerr != nil {
					return rerr
				}
				cred := a.cfg.Remote.APIKey
				if a.token != "" {
					cred = a.token
				}
				copied, err = tables.Mirror(ctx, tables.NewMemTable(data), a.remote, names, schema.ConflictKeys, cred)
			}

			keys := make([]string, 0, len(copied))
			for k := range copied {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%-22s %d\n", k, copied[k])
			}
			return err
		})
	},
}

func init() {
	mirrorCmd.Flags().String("to", "", "Write the remote tables to this dump file")
	mirrorCmd.Flags().String("from", "", "Seed the remote tables from this dump file")
	mirrorCmd.Flags().StringSlice("tables", nil, "Tables to copy (default all)")
}
