package retrieval

import "math"

// Cosine returns the cosine similarity of u and v.
// Zero-norm vectors, mismatched lengths and empty input all compare as 0.
func Cosine(u, v []float32) float64 {
	if len(u) == 0 || len(u) != len(v) {
		return 0
	}

	var dot, nu, nv float64
	for i := range u {
		a, b := float64(u[i]), float64(v[i])
		dot += a * b
		nu += a * a
		nv += b * b
	}
	if nu == 0 || nv == 0 {
		return 0
	}

	sim := dot / math.Sqrt(nu*nv)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
