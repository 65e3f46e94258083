package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	Execute(ctx context.Context) error

	// Key identifies what the job works on (an item id for sync jobs).
	// Used in logs and span attributes.
	Key() string

	Description() string
}

// JobProvider produces the batch of jobs for one scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)
