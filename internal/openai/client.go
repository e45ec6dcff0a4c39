// Package openai adapts the official OpenAI Go SDK to the triage classifier and embedder contracts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/udupa-navya/cf-feedback-agent/internal/intelligence"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

var (
	// ErrEmptyInput is returned when called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in response")
)

const (
	defaultDimension     = 1024
	defaultClassifyModel = "gpt-4o-mini"
)

// Client calls the OpenAI embeddings and chat completions APIs.
type Client struct {
	sdk           openaisdk.Client
	requestOpts   []option.RequestOption
	dimensions    int
	classifyModel string
}

var (
	_ intelligence.Classifier = (*Client)(nil)
	_ intelligence.Embedder   = (*Client)(nil)
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match the centroid column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithClassifyModel sets the chat model used by Classify. Empty keeps the default.
func WithClassifyModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.classifyModel = model
		}
	}
}

// WithRequestOptions passes extra SDK options (base URL, HTTP client, retries).
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(c *Client) {
		c.requestOpts = append(c.requestOpts, opts...)
	}
}

// NewClient creates an OpenAI client using the official SDK. Retries are left to the caller,
// which bounds every call with its own timeout.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		requestOpts:   []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
		dimensions:    defaultDimension,
		classifyModel: defaultClassifyModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.sdk = openaisdk.NewClient(client.requestOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for the given text using text-embedding-3-small.
// The returned slice length equals the configured dimensions.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      openaisdk.EmbeddingModelTextEmbedding3Small,
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

// Classify asks the chat model for a JSON classification of the feedback text.
func (c *Client) Classify(ctx context.Context, input string) (models.Classification, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return models.Classification{}, ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.classifyModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(intelligence.ClassificationPrompt),
			openaisdk.UserMessage(input),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: param.NewOpt(0.0),
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("openai classify: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.Classification{}, ErrNoChoices
	}

	cls, err := intelligence.ParseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return models.Classification{}, fmt.Errorf("openai classify: %w", err)
	}

	return cls, nil
}
