package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/progression-backend/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := app.OpenDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", svc.Driver())
			return nil
		},
	}
}
