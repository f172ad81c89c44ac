package model

import (
	"encoding/json"

	"gorm.io/gorm"
)

type RerunState string

const (
	RerunStatePending    RerunState = "pending"
	RerunStateInProgress RerunState = "in_progress"
	RerunStateSucceeded  RerunState = "succeeded"
	RerunStateFailed     RerunState = "failed"
)

// IsTerminal reports whether the state admits no further transitions.
func (s RerunState) IsTerminal() bool {
	return s == RerunStateSucceeded || s == RerunStateFailed
}

// RerunAttempt records one request to rerun a course under a new key.
// Rows are never deleted; they form the audit trail of the workflow.
// At most one non-failed row may target a given destination key.
type RerunAttempt struct {
	gorm.Model
	SourceKey      string     `gorm:"not null"`
	DestinationKey string     `gorm:"index;not null"`
	CreatedBy      string     `gorm:"not null"`
	DisplayName    string
	State          RerunState `gorm:"not null"`
	StateInfo      string
}

type RerunAttemptList []RerunAttempt

func (r RerunAttempt) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}
