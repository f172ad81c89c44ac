package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/store/model"
)

type CourseRole interface {
	Grant(ctx context.Context, username string, key coursekey.Key, role model.Role) error
	HasAuthorAccess(ctx context.Context, username string, key coursekey.Key) (bool, error)
	InitialMigration() error
}

type CourseRoleStore struct {
	db *gorm.DB
}

// Make sure we conform to CourseRole interface
var _ CourseRole = (*CourseRoleStore)(nil)

func NewCourseRoleStore(db *gorm.DB) CourseRole {
	return &CourseRoleStore{db: db}
}

func (s *CourseRoleStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.CourseRole{})
}

// Grant is idempotent: granting an already-held role is a no-op.
func (s *CourseRoleStore) Grant(ctx context.Context, username string, key coursekey.Key, role model.Role) error {
	courseRole := model.CourseRole{
		Username:  username,
		CourseKey: key.String(),
		Role:      role,
	}
	result := s.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&courseRole)
	if result.Error != nil {
		return fmt.Errorf("granting %s role on %s: %w", role, key, result.Error)
	}
	return nil
}

func (s *CourseRoleStore) HasAuthorAccess(ctx context.Context, username string, key coursekey.Key) (bool, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.CourseRole{}).
		Where("username = ? AND course_key = ? AND role = ?", username, key.String(), model.RoleAuthor).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *CourseRoleStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
