package jobs

import (
	"context"
)

// JobInserter is an interface for inserting jobs into the queue.
// This allows callers to request a digest pass without knowing about River directly.
type JobInserter interface {
	// InsertDigestJob enqueues a digest pass. A pass already waiting in the queue absorbs the request.
	InsertDigestJob(ctx context.Context, args DigestJobArgs) error
}
