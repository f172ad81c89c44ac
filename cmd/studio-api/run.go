package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/events"
	"github.com/openlms/studio/internal/rerun/jobs"
	"github.com/openlms/studio/internal/service"
	"github.com/openlms/studio/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rerun workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := initLogger(cfg)
		defer func() { _ = logger.Sync() }()

		zap.S().Info("starting studio workers")
		defer zap.S().Info("studio workers stopped")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalf("running initial migration: %v", err)
		}

		courses, err := newCourseStore(db, cfg)
		if err != nil {
			zap.S().Fatalf("initializing course store: %v", err)
		}
		if err := courses.InitialMigration(); err != nil {
			zap.S().Fatalf("running course store migration: %v", err)
		}

		writer, err := newEventWriter(cfg)
		if err != nil {
			zap.S().Fatalf("initializing event writer: %v", err)
		}
		producerOpts := []events.ProducerOptions{}
		if cfg.Service.Kafka.Topic != "" {
			producerOpts = append(producerOpts, events.WithOutputTopic(cfg.Service.Kafka.Topic))
		}
		producer := events.NewEventProducer(writer, producerOpts...)
		defer func() { _ = producer.Close() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		pool, err := newPgxPool(ctx, cfg)
		if err != nil {
			zap.S().Fatalf("initializing job queue pool: %v", err)
		}
		defer pool.Close()

		coordinator := service.NewRerunService(s, courses, producer)
		client, err := jobs.NewClient(ctx, pool, coordinator, cfg.Service.RerunWorkers)
		if err != nil {
			zap.S().Fatalf("initializing job client: %v", err)
		}

		if err := client.Start(ctx); err != nil {
			zap.S().Fatalf("starting job workers: %v", err)
		}

		metricsServer := &http.Server{
			Addr:    cfg.Service.MetricsAddress,
			Handler: promhttp.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.S().Errorf("metrics server: %v", err)
			}
		}()

		<-ctx.Done()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := client.Stop(stopCtx); err != nil {
			zap.S().Errorf("stopping job workers: %v", err)
		}
		_ = metricsServer.Shutdown(stopCtx)

		return nil
	},
}
