package model

import "time"

type Role string

const (
	RoleAuthor Role = "author"
)

// CourseRole grants a user a role on a single course run.
type CourseRole struct {
	ID        uint   `gorm:"primaryKey"`
	CreatedAt time.Time
	Username  string `gorm:"uniqueIndex:course_roles_user_course_role;not null"`
	CourseKey string `gorm:"uniqueIndex:course_roles_user_course_role;not null"`
	Role      Role   `gorm:"uniqueIndex:course_roles_user_course_role;not null"`
}
