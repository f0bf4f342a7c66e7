package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-tracker/internal/app"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	dbCfg := app.RepositoryConfig(cfg.Database)

	switch direction {
	case "down":
		err = repository.MigrateDown(dbCfg, logger)
	default:
		err = repository.Migrate(dbCfg, logger)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok (%s)\n", direction, cfg.Database.Driver)
	return err
}
