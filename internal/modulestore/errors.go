package modulestore

import "errors"

var (
	// ErrCourseNotFound is returned when a course key resolves to nothing.
	ErrCourseNotFound = errors.New("course not found")
	// ErrDuplicateCourse is returned when a destination key already holds a
	// course. Existing courses are never overwritten implicitly.
	ErrDuplicateCourse = errors.New("course already exists")
)
