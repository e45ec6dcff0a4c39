// Package embeddings provides utilities for embedding vectors.
package embeddings

import (
	"math"
)

// NormalizeL2 scales vector in place to unit length.
// Returns false and leaves the vector untouched when it has zero magnitude.
func NormalizeL2(vector []float32) bool {
	sumSquares := dot(vector, vector)
	if sumSquares == 0 {
		return false
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}

	return true
}
