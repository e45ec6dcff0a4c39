// Package googleai adapts the Google Gen AI SDK (Gemini API) to the triage classifier and embedder contracts.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/udupa-navya/cf-feedback-agent/internal/intelligence"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
	"github.com/udupa-navya/cf-feedback-agent/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

const (
	defaultDimension     = 1024
	defaultModel         = "gemini-embedding-001"
	defaultClassifyModel = "gemini-2.0-flash"

	// Feedback vectors are compared against each other, not against queries.
	embeddingTaskType = "CLUSTERING"
)

// Client calls the Gemini embeddings and generate-content APIs via the Google Gen AI SDK.
type Client struct {
	client        *genai.Client
	model         string
	classifyModel string
	dimensions    int
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

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithClassifyModel sets the model used by Classify. Empty uses default.
func WithClassifyModel(model string) ClientOption {
	return func(c *Client) {
		c.classifyModel = model
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client:        genaiClient,
		model:         defaultModel,
		classifyModel: defaultClassifyModel,
		dimensions:    defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// CreateEmbedding returns the L2-normalized embedding vector for the given text.
// Gemini only normalizes full-size vectors, so reduced dimensions are normalized here.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	model := c.model
	if model == "" {
		model = defaultModel
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		TaskType:             embeddingTaskType,
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)
	embeddings.NormalizeL2(out)

	return out, nil
}

// Classify asks the model for a JSON classification of the feedback text.
func (c *Client) Classify(ctx context.Context, input string) (models.Classification, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return models.Classification{}, ErrEmptyInput
	}

	model := c.classifyModel
	if model == "" {
		model = defaultClassifyModel
	}

	var temperature float32

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(input), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(intelligence.ClassificationPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       &temperature,
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("gemini classify: %w", err)
	}

	cls, err := intelligence.ParseClassification(resp.Text())
	if err != nil {
		return models.Classification{}, fmt.Errorf("gemini classify: %w", err)
	}

	return cls, nil
}
