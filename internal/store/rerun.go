package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/store/model"
)

type Rerun interface {
	Initiated(ctx context.Context, source, destination coursekey.Key, username, displayName string) (*model.RerunAttempt, error)
	Failed(ctx context.Context, source, destination coursekey.Key, username, displayName, stateInfo string) (*model.RerunAttempt, error)
	FindFirst(ctx context.Context, filter *RerunQueryFilter) (*model.RerunAttempt, error)
	List(ctx context.Context, filter *RerunQueryFilter) (model.RerunAttemptList, error)
	UpdateState(ctx context.Context, id uint, state model.RerunState, stateInfo string) (*model.RerunAttempt, error)
	InitialMigration() error
}

type RerunStore struct {
	db *gorm.DB
}

// Make sure we conform to Rerun interface
var _ Rerun = (*RerunStore)(nil)

func NewRerunStore(db *gorm.DB) Rerun {
	return &RerunStore{db: db}
}

func (s *RerunStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.RerunAttempt{})
}

// Initiated records the intent to rerun a course. The insert is conditional
// and atomic: it succeeds only while no live (non-failed) attempt targets the
// destination, which closes the duplicate-check race between concurrent
// requests. Returns ErrDuplicateKey when a live attempt already exists.
func (s *RerunStore) Initiated(ctx context.Context, source, destination coursekey.Key, username, displayName string) (*model.RerunAttempt, error) {
	now := time.Now().UTC()
	result := s.getDB(ctx).Exec(
		`INSERT INTO rerun_attempts
		    (created_at, updated_at, source_key, destination_key, created_by, display_name, state)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
		     SELECT 1 FROM rerun_attempts
		     WHERE destination_key = ? AND state <> ? AND deleted_at IS NULL
		 )`,
		now, now, source.String(), destination.String(), username, displayName, model.RerunStatePending,
		destination.String(), model.RerunStateFailed,
	)
	if result.Error != nil {
		return nil, fmt.Errorf("recording rerun intent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrDuplicateKey
	}

	return s.FindFirst(ctx, NewRerunQueryFilter().ByDestination(destination).ByState(model.RerunStatePending))
}

// Failed inserts an attempt directly in the failed state. Used to keep an
// audit record of rejected duplicate requests without touching the live
// attempt that owns the destination.
func (s *RerunStore) Failed(ctx context.Context, source, destination coursekey.Key, username, displayName, stateInfo string) (*model.RerunAttempt, error) {
	attempt := model.RerunAttempt{
		SourceKey:      source.String(),
		DestinationKey: destination.String(),
		CreatedBy:      username,
		DisplayName:    displayName,
		State:          model.RerunStateFailed,
		StateInfo:      stateInfo,
	}
	if result := s.getDB(ctx).Create(&attempt); result.Error != nil {
		return nil, fmt.Errorf("recording failed rerun attempt: %w", result.Error)
	}
	return &attempt, nil
}

// FindFirst returns the latest attempt matching the filter.
func (s *RerunStore) FindFirst(ctx context.Context, filter *RerunQueryFilter) (*model.RerunAttempt, error) {
	var attempt model.RerunAttempt

	tx := s.getDB(ctx).Model(&model.RerunAttempt{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	result := tx.Order("id DESC").First(&attempt)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying rerun attempts: %w", result.Error)
	}

	return &attempt, nil
}

func (s *RerunStore) List(ctx context.Context, filter *RerunQueryFilter) (model.RerunAttemptList, error) {
	var attempts model.RerunAttemptList

	tx := s.getDB(ctx).Model(&model.RerunAttempt{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Order("id").Find(&attempts); result.Error != nil {
		return nil, result.Error
	}
	return attempts, nil
}

// UpdateState transitions an attempt. Terminal states are write-once: a
// succeeded or failed attempt is never updated again.
func (s *RerunStore) UpdateState(ctx context.Context, id uint, state model.RerunState, stateInfo string) (*model.RerunAttempt, error) {
	var attempt model.RerunAttempt

	result := s.getDB(ctx).First(&attempt, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying rerun attempt: %w", result.Error)
	}

	if attempt.State.IsTerminal() {
		return nil, fmt.Errorf("rerun attempt %d is already %s", id, attempt.State)
	}

	attempt.State = state
	attempt.StateInfo = stateInfo
	if result := s.getDB(ctx).Save(&attempt); result.Error != nil {
		return nil, fmt.Errorf("updating rerun attempt: %w", result.Error)
	}

	return &attempt, nil
}

func (s *RerunStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
