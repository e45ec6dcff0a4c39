package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append(opts, WithRequestOptions(option.WithBaseURL(srv.URL+"/")))

	return NewClient("test-key", opts...)
}

func TestCreateEmbedding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 3, body["dimensions"], 0)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}, WithDimensions(3))

	got, err := client.CreateEmbedding(context.Background(), "App crashes on resume")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
}

func TestCreateEmbedding_DimensionMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m",
			"data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}, WithDimensions(3))

	_, err := client.CreateEmbedding(context.Background(), "text")
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCreateEmbedding_EmptyInput(t *testing.T) {
	client := NewClient("test-key")

	_, err := client.CreateEmbedding(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = client.Classify(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestClassify(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		reply := `{"category":"payment","severity":"P1","confidence":0.8,"summary":"Double charge"}`
		resp := map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": reply},
			}},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}, WithClassifyModel("gpt-test"))

	got, err := client.Classify(context.Background(), "I was charged twice")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPayment, got.Category)
	assert.Equal(t, models.SeverityP1, got.Severity)
	assert.Equal(t, "Double charge", got.Summary)
}

func TestClassify_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})

	_, err := client.Classify(context.Background(), "The app is slow")
	require.Error(t, err)
}
