// Package triage turns cheap per-job survey signals into scheduling
// decisions: a cost bucket, a priority score, and a search budget.
package triage

import (
	"context"

	"sqlboost/internal/config"
	"sqlboost/internal/work"
)

// Job is one schedulable work item.
type Job struct {
	ID      string
	Payload work.Work
}

// SurveyResult carries the signals a job is triaged on. It is computed
// once per scheduling pass and never mutated; re-surveying produces a
// fresh value.
type SurveyResult struct {
	JobID           string
	EstimatedCostMs float64
	Tractability    int
	StructuralBonus float64
}

// Surveyor produces survey signals for a job. The scheduler never
// computes cost or tractability itself.
type Surveyor interface {
	Survey(ctx context.Context, job Job) (SurveyResult, error)
}

// SurveyorFunc adapts a plain function to the Surveyor interface.
type SurveyorFunc func(ctx context.Context, job Job) (SurveyResult, error)

func (f SurveyorFunc) Survey(ctx context.Context, job Job) (SurveyResult, error) {
	return f(ctx, job)
}

// Bucket is the coarseness tier a job lands in.
type Bucket int

const (
	BucketSkip Bucket = iota
	BucketLow
	BucketMedium
	BucketHigh
)

func (b Bucket) String() string {
	switch b {
	case BucketSkip:
		return "SKIP"
	case BucketLow:
		return "LOW"
	case BucketMedium:
		return "MEDIUM"
	case BucketHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// Prior is the best known outcome of an earlier run for the same job.
type Prior struct {
	BestOutput string
	Speedup    float64
	Source     string
}

// Result is the scheduling decision for one job. It is consumed exactly
// once by the execution phase and never mutated afterwards.
type Result struct {
	JobID         string
	Bucket        Bucket
	PriorityScore float64
	MaxRounds     int
	Payload       work.Work
	SeedPayload   work.Work
	PriorBest     string
	PriorScore    float64
	PriorSource   string
}

// BucketOf maps an estimated cost to a tier. Unknown cost (-1) lands in
// MEDIUM rather than being assumed cheap.
func BucketOf(costMs float64, cfg config.TriageConfig) Bucket {
	if costMs < 0 {
		return BucketMedium
	}
	switch {
	case costMs < cfg.SkipBelowMs:
		return BucketSkip
	case costMs < cfg.LowBelowMs:
		return BucketLow
	case costMs < cfg.MediumBelowMs:
		return BucketMedium
	default:
		return BucketHigh
	}
}

func weight(b Bucket) float64 {
	switch b {
	case BucketLow:
		return 1
	case BucketMedium:
		return 3
	case BucketHigh:
		return 5
	default:
		return 0
	}
}

// Priority scores a job for scheduling order.
func Priority(b Bucket, tractability int, structuralBonus float64) float64 {
	return weight(b) * (1.0 + float64(tractability) + structuralBonus)
}

// MaxRounds is the search budget a bucket earns. Highly tractable jobs
// in the upper tiers get extra rounds.
func MaxRounds(b Bucket, tractability int) int {
	switch b {
	case BucketSkip:
		return 0
	case BucketLow:
		return 1
	case BucketMedium:
		if tractability >= 2 {
			return 3
		}
		return 2
	case BucketHigh:
		if tractability >= 2 {
			return 5
		}
		return 3
	}
	return 0
}

// Decide builds the scheduling decision for one job. prior may be nil.
// With PriorBoost enabled, a known prior speedup multiplies the priority;
// seed selects whether the session starts from the prior best rewrite.
func Decide(job Job, survey SurveyResult, prior *Prior, seed bool, cfg config.TriageConfig) Result {
	b := BucketOf(survey.EstimatedCostMs, cfg)
	score := Priority(b, survey.Tractability, survey.StructuralBonus)
	res := Result{
		JobID:         job.ID,
		Bucket:        b,
		PriorityScore: score,
		MaxRounds:     MaxRounds(b, survey.Tractability),
		Payload:       job.Payload,
		SeedPayload:   job.Payload,
	}
	if prior == nil || prior.BestOutput == "" {
		return res
	}
	res.PriorBest = prior.BestOutput
	res.PriorScore = prior.Speedup
	res.PriorSource = prior.Source
	if cfg.PriorBoost && prior.Speedup > 0 {
		res.PriorityScore = score * prior.Speedup
	}
	if seed {
		res.SeedPayload = work.SQL(prior.BestOutput)
	}
	return res
}
