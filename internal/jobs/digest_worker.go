package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

const (
	// DigestTimeout bounds a whole digest pass, including every collaborator call.
	DigestTimeout = 30 * time.Minute
	// DigestMaxAttempts is the number of times River runs a failing pass.
	DigestMaxAttempts = 3
)

// DigestGenerator runs one digest pass.
type DigestGenerator interface {
	GenerateDigest(ctx context.Context) (*models.Digest, error)
}

// DigestWorker runs digest passes.
type DigestWorker struct {
	river.WorkerDefaults[DigestJobArgs]
	generator DigestGenerator
}

// NewDigestWorker creates a new digest worker.
func NewDigestWorker(generator DigestGenerator) *DigestWorker {
	return &DigestWorker{generator: generator}
}

// Timeout limits how long a single pass can run.
func (w *DigestWorker) Timeout(*river.Job[DigestJobArgs]) time.Duration {
	return DigestTimeout
}

// Work runs a digest pass. Failures before the digest is saved are returned so River retries the
// pass; a delivery failure is not, since the items are already processed and the digest stored.
func (w *DigestWorker) Work(ctx context.Context, job *river.Job[DigestJobArgs]) error {
	slog.DebugContext(ctx, "processing digest job",
		"job_id", job.ID,
		"trigger", job.Args.Trigger,
		"attempt", job.Attempt,
	)

	d, err := w.generator.GenerateDigest(ctx)
	if err != nil {
		stage, _ := apperrors.StageOf(err)
		if d != nil && stage == apperrors.StageDelivery {
			slog.WarnContext(ctx, "digest saved but not delivered",
				"job_id", job.ID,
				"digest_id", d.ID,
				"error", err,
			)

			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			slog.ErrorContext(ctx, "digest pass timed out", "job_id", job.ID, "stage", stage)
		}

		return err
	}

	slog.InfoContext(ctx, "digest job completed",
		"job_id", job.ID,
		"digest_id", d.ID,
		"items", d.Report.ItemsProcessed,
	)

	return nil
}
