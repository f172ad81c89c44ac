package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/contentstore"
	"github.com/openlms/studio/internal/events"
	"github.com/openlms/studio/internal/modulestore"
	"github.com/openlms/studio/pkg/log"
)

func initLogger(cfg *config.Config) *zap.Logger {
	lvl, err := zapcore.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	logger := log.InitLog(zap.NewAtomicLevelAt(lvl))
	zap.ReplaceGlobals(logger)
	return logger
}

func newPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Database.Type != "pgsql" {
		return nil, fmt.Errorf("the job queue requires a postgres database, got %q", cfg.Database.Type)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Hostname,
		cfg.Database.Port,
		cfg.Database.Name,
	)
	return pgxpool.New(ctx, dsn)
}

func newCourseStore(db *gorm.DB, cfg *config.Config) (*modulestore.MixedStore, error) {
	assets, err := contentstore.NewMinioStore(
		contentstore.WithEndpoint(cfg.Service.Content.Endpoint),
		contentstore.WithBucket(cfg.Service.Content.Bucket),
		contentstore.WithAccessKey(cfg.Service.Content.AccessKey),
		contentstore.WithSecretKey(cfg.Service.Content.SecretKey),
		contentstore.WithSSL(cfg.Service.Content.UseSSL),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing asset store: %w", err)
	}

	return modulestore.NewMixedStore(
		assets,
		cfg.Service.DefaultBackend,
		modulestore.NewDocumentBackend(db),
		modulestore.NewSplitBackend(db),
	)
}

func newEventWriter(cfg *config.Config) (events.Writer, error) {
	if len(cfg.Service.Kafka.Brokers) == 0 {
		return &events.StdoutWriter{}, nil
	}
	return events.NewKafkaWriter(cfg.Service.Kafka.Brokers, cfg.Service.Kafka.ClientID)
}
