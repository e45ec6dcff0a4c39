package jobs

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

var _ JobInserter = (*RiverJobInserter)(nil)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client *river.Client[pgx.Tx]
}

// NewRiverJobInserter creates a new River-based job inserter.
func NewRiverJobInserter(client *river.Client[pgx.Tx]) *RiverJobInserter {
	return &RiverJobInserter{client: client}
}

// InsertDigestJob enqueues a digest pass with uniqueness constraints.
func (r *RiverJobInserter) InsertDigestJob(ctx context.Context, args DigestJobArgs) error {
	_, err := r.client.Insert(ctx, args, digestInsertOpts())

	return err
}

// digestInsertOpts allows a single queued or running digest pass at a time, whatever its trigger.
func digestInsertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		MaxAttempts: DigestMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			// Note: JobStatePending is required by River when using ByState
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}
