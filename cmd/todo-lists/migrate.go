package main

import (
	"fmt"

	"todolist-app-go/internal/config"
	"todolist-app-go/internal/db"
	"todolist-app-go/pkg/logger"

	"github.com/spf13/cobra"
)

func newMigrateCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate: STORE_DRIVER is %q, migrations only apply to %q", cfg.Store.Driver, config.StoreDriverPostgres)
			}

			dbConn, err := db.NewPostgres(cfg.DB, log)
			if err != nil {
				return err
			}
			sqlDB, err := dbConn.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			applied, err := db.Migrate(dbConn, log)
			if err != nil {
				return err
			}
			log.Info("db: migrations applied", "count", applied)
			return nil
		},
	}
}
