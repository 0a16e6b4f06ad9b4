package util

import (
	"math/rand"
	"testing"
)

func TestPickWeightedSkipsNonPositiveWeights(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		if got := PickWeighted(r, []int{0, 5}); got != 1 {
			t.Fatalf("zero-weight index picked: %d", got)
		}
		if got := PickWeighted(r, []int{-3, 4}); got != 1 {
			t.Fatalf("negative-weight index picked: %d", got)
		}
	}
}

func TestPickWeightedZeroTotalFallsBackUniform(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got := PickWeighted(r, []int{0, 0, 0})
		if got < 0 || got > 2 {
			t.Fatalf("uniform fallback out of range: %d", got)
		}
	}
}

func TestPickWeightedFavorsHeavierWeights(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	counts := make([]int, 2)
	for i := 0; i < 3000; i++ {
		counts[PickWeighted(r, []int{9, 1})]++
	}
	if counts[0] <= counts[1] {
		t.Fatalf("9:1 weighting must favor index 0, got %v", counts)
	}
}
