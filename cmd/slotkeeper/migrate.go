package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"slotkeeper/backend/internal/store/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load("migrate")
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			applied, err := postgres.Migrate(cmd.Context(), db, log)
			if err != nil {
				log.Error("migration failed", slog.Any("err", err))
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}
