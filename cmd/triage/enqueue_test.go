package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udupa-navya/cf-feedback-agent/internal/jobs"
)

type mockInserter struct {
	insertFunc func(ctx context.Context, args jobs.DigestJobArgs) error
}

func (m *mockInserter) InsertDigestJob(ctx context.Context, args jobs.DigestJobArgs) error {
	return m.insertFunc(ctx, args)
}

func TestRequestDigest(t *testing.T) {
	t.Run("queues a manual pass", func(t *testing.T) {
		var got []jobs.DigestJobArgs

		inserter := &mockInserter{insertFunc: func(_ context.Context, args jobs.DigestJobArgs) error {
			got = append(got, args)

			return nil
		}}

		require.NoError(t, requestDigest(context.Background(), inserter))
		require.Len(t, got, 1)
		assert.Equal(t, jobs.TriggerManual, got[0].Trigger)
	})

	t.Run("wraps insert errors", func(t *testing.T) {
		boom := errors.New("queue unavailable")
		inserter := &mockInserter{insertFunc: func(context.Context, jobs.DigestJobArgs) error { return boom }}

		err := requestDigest(context.Background(), inserter)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "enqueue digest job")
	})
}
