package service

import (
	"context"
	"errors"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/rerun/jobs"
	"github.com/openlms/studio/internal/service/mappers"
	"github.com/openlms/studio/internal/store"
	"github.com/openlms/studio/internal/store/model"
)

// JobService is the submission side of the rerun workflow: it records the
// intent and enqueues the asynchronous task.
type JobService struct {
	client *jobs.Client
	store  store.Store
	logger *zap.SugaredLogger
}

func NewJobService(client *jobs.Client, st store.Store) *JobService {
	return &JobService{
		client: client,
		store:  st,
		logger: zap.S().Named("job_service"),
	}
}

type JobInfo struct {
	ID     int64
	Status string
	Error  string
}

// CreateRerun records a pending attempt for the destination and enqueues
// the rerun task. The intent record is a single conditional insert, so a
// destination can be reserved by exactly one live attempt: concurrent
// requests lose with ErrDuplicateRerun and are kept as failed audit rows.
func (s *JobService) CreateRerun(ctx context.Context, form mappers.RerunCreateForm) (*JobInfo, error) {
	if err := form.Validate(); err != nil {
		return nil, NewErrInvalidForm(err)
	}

	source, err := coursekey.Parse(form.SourceKey)
	if err != nil {
		return nil, NewErrInvalidCourseKey(form.SourceKey, err)
	}
	destination, err := coursekey.Parse(form.DestinationKey)
	if err != nil {
		return nil, NewErrInvalidCourseKey(form.DestinationKey, err)
	}

	if _, err := s.store.Rerun().Initiated(ctx, source, destination, form.Username, form.DisplayName); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			_, _ = s.store.Rerun().Failed(ctx, source, destination, form.Username, form.DisplayName, OutcomeDuplicate)
			return nil, NewErrDuplicateRerun(destination)
		}
		return nil, err
	}

	jobID, err := s.client.InsertJob(ctx, jobs.RerunArgs{
		SourceKey:      form.SourceKey,
		DestinationKey: form.DestinationKey,
		Username:       form.Username,
		DisplayName:    form.DisplayName,
		FieldsJSON:     form.FieldsJSON,
	})
	if err != nil {
		s.logger.Errorw("failed to enqueue rerun job", "destination", form.DestinationKey, "error", err)
		return nil, err
	}

	s.logger.Infow("rerun job enqueued", "job_id", jobID, "destination", form.DestinationKey)
	return &JobInfo{ID: jobID, Status: string(rivertype.JobStateAvailable)}, nil
}

func (s *JobService) GetJob(ctx context.Context, jobID int64) (*JobInfo, error) {
	row, err := s.client.JobGet(ctx, jobID)
	if err != nil {
		if errors.Is(err, river.ErrNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}
	return rowToJobInfo(row), nil
}

// WaitForOutcome blocks until the job finishes and returns the outcome
// string produced by the coordinator.
func (s *JobService) WaitForOutcome(ctx context.Context, jobID int64) (string, error) {
	outcome, err := s.client.Result(ctx, jobID)
	if err != nil {
		if errors.Is(err, river.ErrNotFound) {
			return "", NewErrJobNotFound(jobID)
		}
		return "", err
	}
	return outcome, nil
}

// GetRerunState returns the latest attempt targeting the destination, for
// callers polling progress.
func (s *JobService) GetRerunState(ctx context.Context, destination coursekey.Key) (*model.RerunAttempt, error) {
	attempt, err := s.store.Rerun().FindFirst(ctx, store.NewRerunQueryFilter().ByDestination(destination))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrRerunNotFound(destination)
		}
		return nil, err
	}
	return attempt, nil
}

func rowToJobInfo(row *rivertype.JobRow) *JobInfo {
	info := &JobInfo{ID: row.ID, Status: string(row.State)}
	if len(row.Errors) > 0 {
		info.Error = row.Errors[len(row.Errors)-1].Error
	}
	return info
}
