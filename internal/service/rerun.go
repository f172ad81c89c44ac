package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/events"
	"github.com/openlms/studio/internal/modulestore"
	"github.com/openlms/studio/internal/rerun/jobs"
	"github.com/openlms/studio/internal/store"
	"github.com/openlms/studio/internal/store/model"
	"github.com/openlms/studio/pkg/metrics"
)

// Outcome strings are the wire contract between the rerun task and any
// caller blocking on its result.
const (
	OutcomeSucceeded       = "succeeded"
	OutcomeDuplicate       = "duplicate course"
	OutcomeExceptionPrefix = "exception: "
)

// RerunService is the coordinator of the rerun workflow. Execute runs one
// attempt end to end; it is invoked from the rerun job worker.
type RerunService struct {
	store         store.Store
	courses       *modulestore.MixedStore
	eventProducer *events.EventProducer
	logger        *zap.SugaredLogger
}

// Make sure we conform to the worker's contract
var _ jobs.Coordinator = (*RerunService)(nil)

func NewRerunService(st store.Store, courses *modulestore.MixedStore, eventProducer *events.EventProducer) *RerunService {
	return &RerunService{
		store:         st,
		courses:       courses,
		eventProducer: eventProducer,
		logger:        zap.S().Named("rerun_service"),
	}
}

// Execute performs the rerun described by args and returns the outcome
// string. Every failure mode is converted into an outcome and a terminal
// attempt record; Execute never raises.
func (s *RerunService) Execute(ctx context.Context, args jobs.RerunArgs) string {
	start := time.Now()
	outcome := s.execute(ctx, args)

	metrics.IncRerunOutcome(outcomeClass(outcome))
	metrics.ObserveRerunDuration(outcomeClass(outcome), time.Since(start).Seconds())

	s.logger.Infow("rerun finished",
		"source", args.SourceKey,
		"destination", args.DestinationKey,
		"username", args.Username,
		"outcome", outcome,
	)
	return outcome
}

func (s *RerunService) execute(ctx context.Context, args jobs.RerunArgs) string {
	source, err := coursekey.Parse(args.SourceKey)
	if err != nil {
		return OutcomeExceptionPrefix + err.Error()
	}
	destination, err := coursekey.Parse(args.DestinationKey)
	if err != nil {
		return OutcomeExceptionPrefix + err.Error()
	}
	fields, err := modulestore.ParseFieldOverrides(args.FieldsJSON)
	if err != nil {
		return s.fail(ctx, source, destination, args, err.Error())
	}

	// Find the intent record for this attempt. A live attempt belonging to
	// a different request means the destination is already reserved.
	attempt, err := s.store.Rerun().FindFirst(ctx,
		store.NewRerunQueryFilter().ByDestination(destination).ExcludeState(model.RerunStateFailed))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			// intent was never recorded; the caller broke the contract
			return s.fail(ctx, source, destination, args, "rerun attempt was not initiated")
		}
		return s.fail(ctx, source, destination, args, err.Error())
	}

	if attempt.SourceKey != args.SourceKey || attempt.CreatedBy != args.Username || attempt.State != model.RerunStatePending {
		// record the rejection without touching the live attempt
		_, _ = s.store.Rerun().Failed(ctx, source, destination, args.Username, args.DisplayName, OutcomeDuplicate)
		s.emitEvent(ctx, args, model.RerunStateFailed, OutcomeDuplicate)
		return OutcomeDuplicate
	}

	if attempt, err = s.store.Rerun().UpdateState(ctx, attempt.ID, model.RerunStateInProgress, ""); err != nil {
		return s.fail(ctx, source, destination, args, err.Error())
	}

	if _, err := s.courses.CloneCourse(ctx, source, destination, args.Username, fields); err != nil {
		if errors.Is(err, modulestore.ErrDuplicateCourse) {
			// never delete a course this attempt did not create
			_, _ = s.store.Rerun().UpdateState(ctx, attempt.ID, model.RerunStateFailed, OutcomeDuplicate)
			s.emitEvent(ctx, args, model.RerunStateFailed, OutcomeDuplicate)
			return OutcomeDuplicate
		}

		s.cleanupDestination(ctx, destination)
		_, _ = s.store.Rerun().UpdateState(ctx, attempt.ID, model.RerunStateFailed, err.Error())
		s.emitEvent(ctx, args, model.RerunStateFailed, err.Error())
		return OutcomeExceptionPrefix + err.Error()
	}

	if err := s.store.CourseRole().Grant(ctx, args.Username, destination, model.RoleAuthor); err != nil {
		s.cleanupDestination(ctx, destination)
		_, _ = s.store.Rerun().UpdateState(ctx, attempt.ID, model.RerunStateFailed, err.Error())
		s.emitEvent(ctx, args, model.RerunStateFailed, err.Error())
		return OutcomeExceptionPrefix + err.Error()
	}

	if _, err := s.store.Rerun().UpdateState(ctx, attempt.ID, model.RerunStateSucceeded, ""); err != nil {
		return OutcomeExceptionPrefix + err.Error()
	}

	s.emitEvent(ctx, args, model.RerunStateSucceeded, "")
	return OutcomeSucceeded
}

// fail records a terminal failed attempt and returns the exception outcome.
// Used for failures happening before an intent record was claimed.
func (s *RerunService) fail(ctx context.Context, source, destination coursekey.Key, args jobs.RerunArgs, detail string) string {
	_, _ = s.store.Rerun().Failed(ctx, source, destination, args.Username, args.DisplayName, detail)
	s.emitEvent(ctx, args, model.RerunStateFailed, detail)
	return OutcomeExceptionPrefix + detail
}

// cleanupDestination removes whatever part of the destination course the
// failed clone managed to create. Best effort: a missing course is fine.
func (s *RerunService) cleanupDestination(ctx context.Context, destination coursekey.Key) {
	if err := s.courses.DeleteCourse(ctx, destination); err != nil && !errors.Is(err, modulestore.ErrCourseNotFound) {
		s.logger.Errorw("failed to clean up destination course", "destination", destination.String(), "error", err)
	}
}

func (s *RerunService) emitEvent(ctx context.Context, args jobs.RerunArgs, state model.RerunState, stateInfo string) {
	if s.eventProducer == nil {
		return
	}

	event := events.RerunEvent{
		SourceKey:      args.SourceKey,
		DestinationKey: args.DestinationKey,
		Username:       args.Username,
		State:          string(state),
		StateInfo:      stateInfo,
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorw("failed to encode rerun event", "error", err)
		return
	}
	if err := s.eventProducer.Write(ctx, events.RerunMessageKind, bytes.NewReader(data)); err != nil {
		s.logger.Errorw("failed to emit rerun event", "error", err)
	}
}

func outcomeClass(outcome string) string {
	switch outcome {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "exception"
	}
}
