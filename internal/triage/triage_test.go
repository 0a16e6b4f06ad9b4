package triage

import (
	"testing"

	"sqlboost/internal/config"
	"sqlboost/internal/work"
)

func triageCfg() config.TriageConfig {
	return config.TriageConfig{SkipBelowMs: 100, LowBelowMs: 1000, MediumBelowMs: 10000, PriorBoost: true}
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		costMs float64
		want   Bucket
	}{
		{99, BucketSkip},
		{100, BucketLow},
		{999, BucketLow},
		{1000, BucketMedium},
		{9999, BucketMedium},
		{10000, BucketHigh},
		{-1, BucketMedium},
	}
	for _, c := range cases {
		if got := BucketOf(c.costMs, triageCfg()); got != c.want {
			t.Fatalf("BucketOf(%v) = %s, want %s", c.costMs, got, c.want)
		}
	}
}

func TestPriorityFormula(t *testing.T) {
	if got := Priority(BucketHigh, 2, 0.8); got != 19.0 {
		t.Fatalf("Priority = %v, want 19.0", got)
	}
	if got := Priority(BucketSkip, 5, 1.0); got != 0 {
		t.Fatalf("SKIP jobs must score zero, got %v", got)
	}
}

func TestMaxRoundsBudget(t *testing.T) {
	cases := []struct {
		bucket       Bucket
		tractability int
		want         int
	}{
		{BucketSkip, 3, 0},
		{BucketLow, 3, 1},
		{BucketMedium, 1, 2},
		{BucketMedium, 2, 3},
		{BucketHigh, 1, 3},
		{BucketHigh, 2, 5},
	}
	for _, c := range cases {
		if got := MaxRounds(c.bucket, c.tractability); got != c.want {
			t.Fatalf("MaxRounds(%s, %d) = %d, want %d", c.bucket, c.tractability, got, c.want)
		}
	}
}

func TestDecidePriorBoostAndSeeding(t *testing.T) {
	job := Job{ID: "q1", Payload: work.SQL("SELECT orig")}
	survey := SurveyResult{JobID: "q1", EstimatedCostMs: 15000, Tractability: 0}
	prior := &Prior{BestOutput: "SELECT better", Speedup: 1.8, Source: "checkpoint"}

	res := Decide(job, survey, prior, true, triageCfg())
	if res.Bucket != BucketHigh {
		t.Fatalf("expected HIGH, got %s", res.Bucket)
	}
	if res.PriorityScore != 5*1.8 {
		t.Fatalf("prior speedup must multiply priority, got %v", res.PriorityScore)
	}
	if res.SeedPayload.Serialize() != "SELECT better" {
		t.Fatalf("seeding enabled must start from the prior best, got %q", res.SeedPayload.Serialize())
	}
	if res.Payload.Serialize() != "SELECT orig" {
		t.Fatalf("payload must stay the original")
	}

	unseeded := Decide(job, survey, prior, false, triageCfg())
	if unseeded.SeedPayload.Serialize() != "SELECT orig" {
		t.Fatalf("seeding disabled must start from the original")
	}

	cfg := triageCfg()
	cfg.PriorBoost = false
	unboosted := Decide(job, survey, prior, true, cfg)
	if unboosted.PriorityScore != 5.0 {
		t.Fatalf("boost disabled must leave the base priority, got %v", unboosted.PriorityScore)
	}
}

func TestDecideWithoutPrior(t *testing.T) {
	job := Job{ID: "q2", Payload: work.SQL("SELECT a")}
	survey := SurveyResult{JobID: "q2", EstimatedCostMs: 50, Tractability: 4, StructuralBonus: 1}
	res := Decide(job, survey, nil, true, triageCfg())
	if res.Bucket != BucketSkip || res.MaxRounds != 0 || res.PriorityScore != 0 {
		t.Fatalf("cheap jobs are skipped outright: %+v", res)
	}
	if !work.Equal(res.SeedPayload, job.Payload) {
		t.Fatalf("no prior means seed equals payload")
	}
}
