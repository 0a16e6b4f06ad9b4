package timing

import (
	"context"
	"math"
	"testing"

	"sqlboost/internal/config"
	"sqlboost/internal/exec"
	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

type scriptedEngine struct {
	latencies []float64
	errs      []error
	calls     int
}

func (s *scriptedEngine) Execute(ctx context.Context, w work.Work) (exec.Result, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return exec.Result{}, s.errs[idx]
	}
	return exec.Result{ElapsedMs: s.latencies[idx]}, nil
}

func TestReduceTrimmedMean(t *testing.T) {
	got, err := Reduce(config.TimingTrimmedMean, []float64{100, 110, 90, 1000, 105})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got != 105 {
		t.Fatalf("expected 105, got %v", got)
	}
}

func TestReduceDiscardWarmup(t *testing.T) {
	got, err := Reduce(config.TimingDiscardWarmup, []float64{500, 120, 118})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got != 119 {
		t.Fatalf("expected 119, got %v", got)
	}
}

func TestReduceInsufficientFiniteSamples(t *testing.T) {
	inf := math.Inf(1)
	_, err := Reduce(config.TimingTrimmedMean, []float64{100, inf, inf, inf, 105})
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestReduceToleratesOneOutlierRun(t *testing.T) {
	inf := math.Inf(1)
	// The trim discards the infinite sample as the maximum.
	got, err := Reduce(config.TimingTrimmedMean, []float64{100, 110, 90, inf, 105})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got != 105 {
		t.Fatalf("expected 105, got %v", got)
	}
}

func TestReduceUnknownPolicy(t *testing.T) {
	if _, err := Reduce("median", []float64{1, 2, 3}); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestMeasureSequentialRuns(t *testing.T) {
	eng := &scriptedEngine{latencies: []float64{500, 120, 118}}
	e := New(eng, config.TimingConfig{Policy: config.TimingDiscardWarmup, Runs: 3})
	got, err := e.Measure(context.Background(), work.SQL("SELECT 1"))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if got != 119 {
		t.Fatalf("expected 119, got %v", got)
	}
	if eng.calls != 3 {
		t.Fatalf("expected 3 runs, got %d", eng.calls)
	}
}

func TestMeasureErroredRunsBecomeInfinite(t *testing.T) {
	eng := &scriptedEngine{
		latencies: []float64{100, 0, 0, 0, 105},
		errs:      []error{nil, errors.New("down"), errors.New("down"), errors.New("down"), nil},
	}
	e := New(eng, config.TimingConfig{Policy: config.TimingTrimmedMean, Runs: 5})
	if _, err := e.Measure(context.Background(), work.SQL("SELECT 1")); !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestSpeedupBoundaries(t *testing.T) {
	if _, err := Speedup(100, 0); !errors.Is(err, ErrBadMeasurement) {
		t.Fatalf("candidate==0 must be a measurement error")
	}
	if _, err := Speedup(100, -5); !errors.Is(err, ErrBadMeasurement) {
		t.Fatalf("negative candidate must be a measurement error")
	}
	got, err := Speedup(250, 100)
	if err != nil {
		t.Fatalf("speedup: %v", err)
	}
	if got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
}
