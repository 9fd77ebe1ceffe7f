package search

import "math"

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Truncate returns the first dim components of v. A dim of zero, or one not
// smaller than len(v), returns v unchanged.
func Truncate(v []float32, dim int) []float32 {
	if dim <= 0 || dim >= len(v) {
		return v
	}
	return v[:dim]
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|). Vectors must have equal
// length. A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	return cosine(a, b, Norm(a), Norm(b))
}

// cosine scores with precomputed norms.
func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
