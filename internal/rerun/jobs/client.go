package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const resultPollInterval = 200 * time.Millisecond

type Client struct {
	*river.Client[pgx.Tx]
}

func NewClient(ctx context.Context, pool *pgxpool.Pool, coordinator Coordinator, maxWorkers int) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewRerunWorker(coordinator))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient}, nil
}

// NewInsertOnlyClient returns a client able to enqueue and inspect jobs but
// running no workers. Used by submission-side processes.
func NewInsertOnlyClient(ctx context.Context, pool *pgxpool.Pool) (*Client, error) {
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, err
	}
	return &Client{Client: riverClient}, nil
}

func (c *Client) InsertJob(ctx context.Context, args RerunArgs) (int64, error) {
	result, err := c.Insert(ctx, args, &river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	})
	if err != nil {
		return 0, err
	}
	return result.Job.ID, nil
}

// Result blocks until the job reaches a final state and returns its outcome
// string. This is the synchronous handle over the asynchronous task.
func (c *Client) Result(ctx context.Context, jobID int64) (string, error) {
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

	for {
		row, err := c.JobGet(ctx, jobID)
		if err != nil {
			return "", err
		}

		if IsJobFinished(row.State) {
			return jobOutcome(row)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func IsJobFinished(state rivertype.JobState) bool {
	switch state {
	case rivertype.JobStateCompleted, rivertype.JobStateCancelled, rivertype.JobStateDiscarded:
		return true
	default:
		return false
	}
}

func jobOutcome(row *rivertype.JobRow) (string, error) {
	if row.State == rivertype.JobStateCompleted {
		output := row.Output()
		if output == nil {
			return "", fmt.Errorf("job %d completed without an outcome", row.ID)
		}
		var outcome string
		if err := json.Unmarshal(output, &outcome); err != nil {
			return "", fmt.Errorf("decoding job %d outcome: %w", row.ID, err)
		}
		return outcome, nil
	}

	if len(row.Errors) > 0 {
		return "", fmt.Errorf("job %d %s: %s", row.ID, row.State, row.Errors[len(row.Errors)-1].Error)
	}
	return "", fmt.Errorf("job %d %s", row.ID, row.State)
}
