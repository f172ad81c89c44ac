package service

import (
	"fmt"

	"github.com/openlms/studio/internal/coursekey"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrCourseNotFound(key coursekey.Key) *ErrResourceNotFound {
	return NewErrResourceNotFound(key.String(), "course")
}

func NewErrRerunNotFound(destination coursekey.Key) *ErrResourceNotFound {
	return NewErrResourceNotFound(destination.String(), "rerun attempt for")
}

func NewErrJobNotFound(jobID int64) *ErrResourceNotFound {
	return NewErrResourceNotFound(fmt.Sprintf("%d", jobID), "job")
}

type ErrDuplicateRerun struct {
	error
}

func NewErrDuplicateRerun(destination coursekey.Key) *ErrDuplicateRerun {
	return &ErrDuplicateRerun{fmt.Errorf("destination %s is already targeted by a live rerun attempt", destination)}
}

type ErrInvalidCourseKey struct {
	error
}

func NewErrInvalidCourseKey(raw string, err error) *ErrInvalidCourseKey {
	return &ErrInvalidCourseKey{fmt.Errorf("bad request: course key %q: %v", raw, err)}
}

type ErrInvalidForm struct {
	error
}

func NewErrInvalidForm(err error) *ErrInvalidForm {
	return &ErrInvalidForm{fmt.Errorf("bad request: %v", err)}
}
