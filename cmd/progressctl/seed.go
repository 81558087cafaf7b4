package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/progression-backend/internal/app"
	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate a catalog file and replace the stored catalog with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			b, err := catalog.Load(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog ok: %d games, %d skills, %d badges, %d missions, %d items, %d levels\n",
				len(b.Games), len(b.Skills), len(b.Badges), len(b.Missions), len(b.Items), len(b.Levels))
			if dryRun {
				return nil
			}

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

			reg := catalog.NewRegistry(repos.NewCatalogRepo(svc.DB(), log), log)
			if err := reg.Seed(cmd.Context(), b); err != nil {
				return err
			}
			fmt.Fprintln(out, "catalog seeded")
			return nil
		},
	}
	cmd.Flags().String("file", "", "Catalog YAML file (empty uses the built-in default)")
	cmd.Flags().Bool("dry-run", false, "Validate only")
	return cmd
}
