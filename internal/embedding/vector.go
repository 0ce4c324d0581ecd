package embedding

import "math"

// NormalizeL2Slice normalizes the slice in place to unit L2 norm, so dot
// products downstream are cosine similarities.
func NormalizeL2Slice(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}
