package embeddings

import "math"

// Zero returns an all-zero vector of the given dimension. An all-zero vector
// marks "no usable embedding" and is never a valid similarity target.
func Zero(dim int) []float32 {
	if dim < 0 {
		dim = 0
	}

	return make([]float32, dim)
}

// IsZero reports whether v has no non-zero component. Empty vectors are zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}

	return true
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// It is 0 when lengths differ, when either vector has zero norm, or when the result is NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	normA := dot(a, a)
	normB := dot(b, b)

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot(a, b) / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}

	return sim
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}
