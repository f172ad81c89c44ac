package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Rerun() Rerun
	CourseRole() CourseRole
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db         *gorm.DB
	rerun      Rerun
	courseRole CourseRole
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		rerun:      NewRerunStore(db),
		courseRole: NewCourseRoleStore(db),
		db:         db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Rerun() Rerun {
	return s.rerun
}

func (s *DataStore) CourseRole() CourseRole {
	return s.courseRole
}

func (s *DataStore) InitialMigration() error {
	if err := s.rerun.InitialMigration(); err != nil {
		return err
	}
	return s.courseRole.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
