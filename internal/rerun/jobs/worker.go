package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"
)

type RerunWorker struct {
	river.WorkerDefaults[RerunArgs]
	coordinator Coordinator
}

func NewRerunWorker(coordinator Coordinator) *RerunWorker {
	return &RerunWorker{coordinator: coordinator}
}

func (w *RerunWorker) Timeout(job *river.Job[RerunArgs]) time.Duration {
	return JobTimeout
}

// Work records the coordinator's outcome string as the job output. The job
// itself succeeds even when the rerun fails: the outcome and the attempt
// record carry the failure, not the queue.
func (w *RerunWorker) Work(ctx context.Context, job *river.Job[RerunArgs]) error {
	// Check for cancellation before starting
	if err := ctx.Err(); err != nil {
		return err
	}

	outcome := w.coordinator.Execute(ctx, job.Args)
	return river.RecordOutput(ctx, outcome)
}
