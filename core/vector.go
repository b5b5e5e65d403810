package core

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	// Can't normalize zero vector
	if magnitude == 0 {
		result := make([]float32, len(v))
		return result
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// CosineSimilarity computes the cosine similarity of two vectors normalized
// to [0, 1] as 1 - cosine distance. Both vectors are expected to be unit
// length, so the dot product is the cosine; the result is clamped because
// the distance operator is not trusted to produce a clean bounded score.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return ClampScore(dot)
}

// ClampScore bounds a similarity score to [0, 1].
// NaN and infinities collapse to 0.
func ClampScore(score float32) float32 {
	f := float64(score)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// RepairVector forces a vector to the expected dimension.
// Short vectors are zero-padded, long vectors truncated. Returns the
// repaired vector and whether a repair was needed.
func RepairVector(v []float32, dim int) ([]float32, bool) {
	if len(v) == dim {
		return v, false
	}
	repaired := make([]float32, dim)
	copy(repaired, v)
	return repaired, true
}
