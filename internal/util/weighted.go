package util

import "math/rand"

// PickWeighted selects an index based on integer weights. Non-positive
// weights are skipped; an all-zero weight set falls back to a uniform draw.
func PickWeighted(r *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return r.Intn(len(weights))
	}
	roll := r.Intn(total)
	sum := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		sum += w
		if roll < sum {
			return i
		}
	}
	return len(weights) - 1
}
