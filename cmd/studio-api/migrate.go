package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/store"
	"github.com/openlms/studio/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := initLogger(cfg)
		defer func() { _ = logger.Sync() }()

		zap.S().Info("migrating database")
		defer zap.S().Info("db migrated")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		pool, err := newPgxPool(context.Background(), cfg)
		if err != nil {
			zap.S().Fatalf("initializing job queue pool: %v", err)
		}
		defer pool.Close()

		if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder, pool); err != nil {
			zap.S().Fatalf("running migrations: %v", err)
		}

		return nil
	},
}
