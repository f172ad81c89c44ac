package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/rerun/jobs"
	"github.com/openlms/studio/internal/service"
	"github.com/openlms/studio/internal/service/mappers"
	"github.com/openlms/studio/internal/store"
)

var (
	rerunSource      string
	rerunDestination string
	rerunUser        string
	rerunDisplayName string
	rerunFieldsJSON  string
)

// rerunCmd submits a rerun to the queue and blocks on the result handle.
// The workers of a running `studio-api run` instance pick the job up.
var rerunCmd = &cobra.Command{
	Use:   "rerun",
	Short: "Submit a course rerun and wait for its outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := initLogger(cfg)
		defer func() { _ = logger.Sync() }()

		db, err := store.InitDB(cfg)
		if err != nil {
			return err
		}

		s := store.NewStore(db)
		defer s.Close()

		ctx := context.Background()
		pool, err := newPgxPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		// insert-only client: no workers run in this process
		client, err := jobs.NewInsertOnlyClient(ctx, pool)
		if err != nil {
			return err
		}

		jobService := service.NewJobService(client, s)
		info, err := jobService.CreateRerun(ctx, mappers.RerunCreateForm{
			SourceKey:      rerunSource,
			DestinationKey: rerunDestination,
			Username:       rerunUser,
			DisplayName:    rerunDisplayName,
			FieldsJSON:     rerunFieldsJSON,
		})
		if err != nil {
			var dup *service.ErrDuplicateRerun
			if errors.As(err, &dup) {
				fmt.Println(service.OutcomeDuplicate)
				return nil
			}
			return err
		}

		zap.S().Infow("rerun submitted", "job_id", info.ID)

		outcome, err := jobService.WaitForOutcome(ctx, info.ID)
		if err != nil {
			return err
		}

		fmt.Println(outcome)
		return nil
	},
}

func init() {
	rerunCmd.Flags().StringVar(&rerunSource, "source", "", "source course key (course-v1:Org+Course+Run)")
	rerunCmd.Flags().StringVar(&rerunDestination, "destination", "", "destination course key")
	rerunCmd.Flags().StringVar(&rerunUser, "user", "", "requesting username")
	rerunCmd.Flags().StringVar(&rerunDisplayName, "display-name", "", "display name of the new course run")
	rerunCmd.Flags().StringVar(&rerunFieldsJSON, "fields", "", "JSON object of field overrides")
	_ = rerunCmd.MarkFlagRequired("source")
	_ = rerunCmd.MarkFlagRequired("destination")
	_ = rerunCmd.MarkFlagRequired("user")
}
