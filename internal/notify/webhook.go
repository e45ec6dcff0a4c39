package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// ErrNoWebhookURL is returned when a sender is created without a URL.
var ErrNoWebhookURL = errors.New("notify: webhook URL is required")

// DeliveryResult describes one delivery. It is returned to the caller rather than kept on the
// sender, so concurrent sends never overwrite each other's diagnostics.
type DeliveryResult struct {
	MessageID   string    `json:"message_id"`
	StatusCode  int       `json:"status_code"`
	Attempts    int       `json:"attempts"`
	DeliveredAt time.Time `json:"delivered_at,omitzero"`
}

// SenderOptions configures a ChatWebhookSender.
type SenderOptions struct {
	URL string
	// SigningKey enables Standard Webhooks signatures (whsec_... base64 secret). Empty sends unsigned.
	SigningKey string
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the per-attempt HTTP timeout (default: 15 seconds)
	Timeout time.Duration
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts (retryablehttp defaults when zero).
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// ChatWebhookSender posts digests to a chat incoming-webhook URL with retries.
type ChatWebhookSender struct {
	url        string
	signer     *standardwebhooks.Webhook
	httpClient *retryablehttp.Client
}

type chatPayload struct {
	Text        string             `json:"text"`
	DigestID    uuid.UUID          `json:"digest_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Report      models.BatchReport `json:"report"`
}

type attemptsKey struct{}

// NewChatWebhookSender creates a sender for opts.URL.
func NewChatWebhookSender(opts SenderOptions) (*ChatWebhookSender, error) {
	if opts.URL == "" {
		return nil, ErrNoWebhookURL
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // Disable logging by default

	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}

	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}

	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, _ int) {
		if n, ok := req.Context().Value(attemptsKey{}).(*atomic.Int32); ok {
			n.Add(1)
		}
	}

	// Return the last response instead of a generic "giving up" error so the status is reported.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	sender := &ChatWebhookSender{url: opts.URL, httpClient: retryClient}

	if opts.SigningKey != "" {
		signer, err := standardwebhooks.NewWebhook(opts.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("create webhook signer: %w", err)
		}

		sender.signer = signer
	}

	return sender, nil
}

// Send formats d and POSTs it to the webhook. A non-2xx final status is an error.
func (s *ChatWebhookSender) Send(ctx context.Context, d *models.Digest) (DeliveryResult, error) {
	result := DeliveryResult{MessageID: d.ID.String()}

	body, err := json.Marshal(chatPayload{
		Text:        FormatText(d),
		DigestID:    d.ID,
		GeneratedAt: d.GeneratedAt,
		Report:      d.Report,
	})
	if err != nil {
		return result, fmt.Errorf("marshal digest payload: %w", err)
	}

	attempts := &atomic.Int32{}
	ctx = context.WithValue(ctx, attemptsKey{}, attempts)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.signer != nil {
		timestamp := time.Now()

		signature, err := s.signer.Sign(result.MessageID, timestamp, body)
		if err != nil {
			return result, fmt.Errorf("sign digest payload: %w", err)
		}

		req.Header.Set(standardwebhooks.HeaderWebhookID, result.MessageID)
		req.Header.Set(standardwebhooks.HeaderWebhookSignature, signature)
		req.Header.Set(standardwebhooks.HeaderWebhookTimestamp, strconv.FormatInt(timestamp.Unix(), 10))
	}

	resp, err := s.httpClient.Do(req)
	result.Attempts = int(attempts.Load())

	if err != nil {
		return result, fmt.Errorf("send digest: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.WarnContext(ctx, "failed to close digest webhook response body", "error", closeErr)
		}
	}()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("digest webhook returned non-2xx status: %d", resp.StatusCode)
	}

	result.DeliveredAt = time.Now()

	return result, nil
}
