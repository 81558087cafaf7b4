package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/progression-backend/internal/app"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Operator tooling for the progression backend",
		Long:          "progressctl runs migrations, seeds the reward catalog, re-evaluates unlocks and mints development tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to a TOML config file (overrides CONFIG_FILE)")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// applyConfigFlag makes --config win over CONFIG_FILE for everything that
// loads config afterwards.
func applyConfigFlag(cmd *cobra.Command) error {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return os.Setenv("CONFIG_FILE", p)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*logger.Logger, app.Config, error) {
	if err := applyConfigFlag(cmd); err != nil {
		return nil, app.Config{}, err
	}
	log, err := app.NewLogger()
	if err != nil {
		return nil, app.Config{}, err
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		return nil, app.Config{}, err
	}
	return log, cfg, nil
}
