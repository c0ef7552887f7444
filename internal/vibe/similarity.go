// Package vibe scores catalog places against a query embedding ("vibe
// search"): brute-force cosine similarity over the whole catalog.
package vibe

import "math"

// CosineSimilarity returns the cosine of the angle between a and b:
// dot(a,b) / (|a|*|b|), accumulated in float64. A zero-magnitude vector
// on either side yields 0.0, never NaN. Mismatched lengths also score
// 0.0; callers that care reject them before scoring.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
