package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"
)

const (
	DefaultQueue  = "rerun"
	MaxJobRetries = 1
	JobTimeout    = 10 * time.Minute
	JobKind       = "course_rerun"
)

// RerunArgs is the payload of one course rerun task, stored in
// river_job.args as JSON.
type RerunArgs struct {
	SourceKey      string `json:"source_key"`
	DestinationKey string `json:"destination_key"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	FieldsJSON     string `json:"fields_json,omitempty"`
}

func (RerunArgs) Kind() string {
	return JobKind
}

func (RerunArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}

// Coordinator runs one rerun attempt to completion and reports the outcome
// string. It never panics and never raises: every failure mode is folded
// into the outcome.
type Coordinator interface {
	Execute(ctx context.Context, args RerunArgs) string
}
