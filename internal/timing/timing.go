// Package timing measures work-item latency with robust reduction policies.
package timing

import (
	"context"
	"math"

	"sqlboost/internal/config"
	"sqlboost/internal/exec"
	"sqlboost/internal/util"
	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

// ErrInsufficientSamples is returned when too few runs produced a finite
// latency for the reduced mean to be trustworthy.
var ErrInsufficientSamples = errors.New("timing: insufficient finite samples")

// ErrBadMeasurement is returned for non-positive measurements. A candidate
// measuring <= 0 ms is a measurement fault, never an infinite speedup.
var ErrBadMeasurement = errors.New("timing: non-positive measurement")

// Engine runs a work item repeatedly and reduces the samples to one number.
type Engine struct {
	exec   exec.Engine
	policy string
	runs   int
}

// New builds a timing engine for the configured policy.
func New(engine exec.Engine, cfg config.TimingConfig) *Engine {
	return &Engine{exec: engine, policy: cfg.Policy, runs: cfg.Runs}
}

// Measure executes w sequentially e.runs times and reduces the samples.
// Runs for one work item are never concurrent; concurrency across distinct
// work items is the caller's business.
func (e *Engine) Measure(ctx context.Context, w work.Work) (float64, error) {
	samples := make([]float64, 0, e.runs)
	for i := 0; i < e.runs; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res, err := e.exec.Execute(ctx, w)
		if err != nil {
			util.Detailf("timing run %d failed: %v", i, err)
			samples = append(samples, math.Inf(1))
			continue
		}
		samples = append(samples, res.ElapsedMs)
	}
	return Reduce(e.policy, samples)
}

// Reduce applies the named reduction policy to raw samples.
func Reduce(policy string, samples []float64) (float64, error) {
	var reduced []float64
	switch policy {
	case config.TimingDiscardWarmup:
		if len(samples) < 2 {
			return 0, ErrInsufficientSamples
		}
		reduced = samples[1:]
	case config.TimingTrimmedMean:
		if len(samples) < 5 {
			return 0, ErrInsufficientSamples
		}
		reduced = trim(samples)
	default:
		return 0, errors.Errorf("timing: unknown policy %q", policy)
	}
	finite := reduced[:0:0]
	for _, s := range reduced {
		if !math.IsInf(s, 0) && !math.IsNaN(s) {
			finite = append(finite, s)
		}
	}
	// The minimum-sample floor only bites when the reduction itself keeps
	// at least that many values; a 3-run discard-warmup measurement with
	// two clean samples is still a valid signal.
	need := 3
	if len(reduced) < need {
		need = len(reduced)
	}
	if len(finite) < need || len(finite) == 0 {
		return 0, ErrInsufficientSamples
	}
	sum := 0.0
	for _, s := range finite {
		sum += s
	}
	return sum / float64(len(finite)), nil
}

// trim drops one minimum and one maximum sample.
func trim(samples []float64) []float64 {
	minIdx := 0
	for i, s := range samples {
		if s < samples[minIdx] {
			minIdx = i
		}
	}
	maxIdx := -1
	for i, s := range samples {
		if i == minIdx {
			continue
		}
		if maxIdx < 0 || s > samples[maxIdx] {
			maxIdx = i
		}
	}
	out := make([]float64, 0, len(samples)-2)
	for i, s := range samples {
		if i == minIdx || i == maxIdx {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Speedup computes originalMs / candidateMs.
func Speedup(originalMs, candidateMs float64) (float64, error) {
	if candidateMs <= 0 {
		return 0, ErrBadMeasurement
	}
	if originalMs <= 0 {
		return 0, ErrBadMeasurement
	}
	return originalMs / candidateMs, nil
}
