package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

type mockGenerator struct {
	digest *models.Digest
	err    error
	calls  int
}

func (m *mockGenerator) GenerateDigest(ctx context.Context) (*models.Digest, error) {
	m.calls++

	return m.digest, m.err
}

func TestDigestWorker_Work(t *testing.T) {
	ctx := context.Background()
	job := &river.Job[DigestJobArgs]{JobRow: &rivertype.JobRow{ID: 7, Attempt: 1}, Args: DigestJobArgs{Trigger: TriggerSchedule}}

	t.Run("returns nil when the pass succeeds", func(t *testing.T) {
		gen := &mockGenerator{digest: &models.Digest{ID: uuid.New()}}
		err := NewDigestWorker(gen).Work(ctx, job)
		if err != nil {
			t.Errorf("Work() error = %v, want nil", err)
		}
		if gen.calls != 1 {
			t.Errorf("GenerateDigest calls = %d, want 1", gen.calls)
		}
	})

	t.Run("returns nil when only delivery failed", func(t *testing.T) {
		gen := &mockGenerator{
			digest: &models.Digest{ID: uuid.New()},
			err:    apperrors.NewStageError(apperrors.StageDelivery, errors.New("502 bad gateway")),
		}
		err := NewDigestWorker(gen).Work(ctx, job)
		if err != nil {
			t.Errorf("Work() error = %v, want nil (no retry)", err)
		}
	})

	t.Run("returns error when the pass aborted", func(t *testing.T) {
		cause := apperrors.NewStageError(apperrors.StageLoadClusters, errors.New("connection refused"))
		gen := &mockGenerator{err: cause}
		err := NewDigestWorker(gen).Work(ctx, job)
		if !errors.Is(err, cause) {
			t.Errorf("Work() error = %v, want %v", err, cause)
		}
	})
}

func TestDigestWorker_Timeout(t *testing.T) {
	w := NewDigestWorker(&mockGenerator{})
	if got := w.Timeout(nil); got != DigestTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DigestTimeout)
	}
}

func TestDigestJobArgs_Kind(t *testing.T) {
	if got := (DigestJobArgs{}).Kind(); got != "triage_digest" {
		t.Errorf("Kind() = %q", got)
	}
}

func TestPeriodicDigestJob(t *testing.T) {
	if PeriodicDigestJob(0) == nil {
		t.Fatal("PeriodicDigestJob(0) = nil")
	}
	if PeriodicDigestJob(time.Hour) == nil {
		t.Fatal("PeriodicDigestJob(1h) = nil")
	}

	opts := digestInsertOpts()
	if opts.MaxAttempts != DigestMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", opts.MaxAttempts, DigestMaxAttempts)
	}
	if len(opts.UniqueOpts.ByState) == 0 {
		t.Error("expected unique states")
	}
}
