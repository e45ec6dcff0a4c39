// Package intelligence wraps the external classification and embedding services with
// caller-side timeouts, rate limiting, per-batch caching and deterministic fallbacks.
package intelligence

import (
	"context"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// Classifier assigns category, severity and confidence to feedback text.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

// Embedder returns an embedding vector for feedback text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}
