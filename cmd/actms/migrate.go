package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"actms/db"
	"actms/db/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or list database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		ctx := cmd.Context()
		driver := e.cfg.Database.Driver
		conn, err := db.Open(ctx, driver, e.cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		switch action {
		case "down":
			return migrations.Down(ctx, conn.DB, driver, e.log)
		case "status":
			statuses, err := migrations.List(ctx, conn.DB, driver)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%5d  %-8s %s\n", s.Version, state, s.File)
			}
			return nil
		default:
			return migrations.Run(ctx, conn.DB, driver, e.log)
		}
	},
}
