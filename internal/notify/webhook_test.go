package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

const testSigningKey = "whsec_" + "abcdefghijklmnopqrstuvwxyz123456"

func testDigest() *models.Digest {
	return &models.Digest{
		ID:          uuid.New(),
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		NewIssues: []*models.Cluster{{
			ID: uuid.New(), Count: 2, PriorityScore: 81, PriorityLevel: models.SeverityP0,
			Representative: models.FeedbackItem{Text: "App crashes on resume"},
			Sources:        []models.Source{models.SourceSupport, models.SourceDiscord},
		}},
		Report: models.BatchReport{ItemsProcessed: 3, ClustersCreated: 2, ClustersMerged: 1},
	}
}

func fastSender(t *testing.T, url, key string) *ChatWebhookSender {
	t.Helper()

	s, err := NewChatWebhookSender(SenderOptions{
		URL: url, SigningKey: key, RetryMax: 2,
		RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	return s
}

func TestNewChatWebhookSender_RequiresURL(t *testing.T) {
	_, err := NewChatWebhookSender(SenderOptions{})
	require.ErrorIs(t, err, ErrNoWebhookURL)
}

func TestChatWebhookSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers unsigned payload", func(t *testing.T) {
		var got chatPayload

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Empty(t, r.Header.Get(standardwebhooks.HeaderWebhookSignature))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		d := testDigest()
		res, err := fastSender(t, server.URL, "").Send(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, 1, res.Attempts)
		assert.False(t, res.DeliveredAt.IsZero())
		assert.Equal(t, d.ID, got.DigestID)
		assert.Contains(t, got.Text, "App crashes on resume")
	})

	t.Run("signs payload when key is set", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)

			wh, err := standardwebhooks.NewWebhook(testSigningKey)
			assert.NoError(t, err)
			assert.NoError(t, wh.Verify(body, r.Header))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		_, err := fastSender(t, server.URL, testSigningKey).Send(ctx, testDigest())
		require.NoError(t, err)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)

				return
			}

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		res, err := fastSender(t, server.URL, "").Send(ctx, testDigest())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		res, err := fastSender(t, server.URL, "").Send(ctx, testDigest())
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
		assert.True(t, res.DeliveredAt.IsZero())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		res, err := fastSender(t, server.URL, "").Send(ctx, testDigest())
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("concurrent sends keep separate results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p chatPayload
			_ = json.NewDecoder(r.Body).Decode(&p)

			if p.Report.ItemsProcessed == 0 {
				w.WriteHeader(http.StatusBadRequest)

				return
			}

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sender := fastSender(t, server.URL, "")
		good, bad := testDigest(), testDigest()
		bad.Report = models.BatchReport{}

		type outcome struct {
			res DeliveryResult
			err error
		}

		results := make(chan outcome, 2)
		for _, d := range []*models.Digest{good, bad} {
			go func(d *models.Digest) {
				res, err := sender.Send(ctx, d)
				results <- outcome{res, err}
			}(d)
		}

		byID := map[string]outcome{}
		for range 2 {
			o := <-results
			byID[o.res.MessageID] = o
		}

		require.NoError(t, byID[good.ID.String()].err)
		require.Error(t, byID[bad.ID.String()].err)
		assert.Equal(t, http.StatusBadRequest, byID[bad.ID.String()].res.StatusCode)
	})
}

func TestFormatText(t *testing.T) {
	d := testDigest()
	version := "2.4.1"
	d.Monitoring = []*models.Cluster{{
		Count: 5, PriorityLevel: models.SeverityP2, Representative: models.FeedbackItem{Text: "Dark mode toggle resets"},
		Fix: models.Fix{Status: models.FixStatusFixDeployed, DeployedVersion: &version},
	}}
	d.Report.ClassificationFallbacks = 2

	text := FormatText(d)

	assert.Contains(t, text, "Feedback digest 2026-03-02 09:00 UTC")
	assert.Contains(t, text, "3 items triaged, 2 new clusters, 1 merged")
	assert.Contains(t, text, "Degraded: 2 classification fallbacks")
	assert.Contains(t, text, "Top issues (1)")
	assert.Contains(t, text, "1. [P0] App crashes on resume x2 (score 81, support, discord)")
	assert.Contains(t, text, "Monitoring fixes (1)")
	assert.Contains(t, text, "fix 2.4.1")
	assert.NotContains(t, text, "Failed fixes")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("a\n  b"))

	long := make([]rune, maxLineText+5)
	for i := range long {
		long[i] = 'x'
	}

	got := truncate(string(long))
	assert.Len(t, []rune(got), maxLineText+3)
}
