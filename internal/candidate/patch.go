// Package candidate records every rewrite attempted for one job.
package candidate

import (
	"sqlboost/internal/gate"
	"sqlboost/internal/work"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Status classifies a benchmarked candidate.
type Status int

const (
	StatusNone Status = iota
	StatusWin
	StatusImproved
	StatusNeutral
	StatusRegression
	StatusFail
	StatusError
)

// String renders the status for logs and reports.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusWin:
		return "WIN"
	case StatusImproved:
		return "IMPROVED"
	case StatusNeutral:
		return "NEUTRAL"
	case StatusRegression:
		return "REGRESSION"
	case StatusFail:
		return "FAIL"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Classify maps a speedup to a status given the configured boundaries.
// winThreshold and neutralFloor are inclusive lower bounds of WIN and
// NEUTRAL respectively.
func Classify(speedup, winThreshold, neutralFloor float64) Status {
	switch {
	case speedup >= winThreshold:
		return StatusWin
	case speedup >= 1.0:
		return StatusImproved
	case speedup >= neutralFloor:
		return StatusNeutral
	default:
		return StatusRegression
	}
}

// Patch is one attempted rewrite. Values are immutable after creation;
// state advances only through WithVerdict and WithBenchmark, which return
// new values.
type Patch struct {
	ID         string
	Lineage    string
	Lane       int
	Relevance  float64
	Output     work.Work
	Verdict    gate.Verdict
	Status     Status
	Speedup    float64
	ApplyError string
}

// New creates a pending patch for a lane's generator output.
func New(lineage string, lane int, relevance float64, output work.Work) Patch {
	id := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	return Patch{
		ID:        id,
		Lineage:   lineage,
		Lane:      lane,
		Relevance: relevance,
		Output:    output,
		Verdict:   gate.VerdictPending,
	}
}

// Failed creates a patch for a lane whose generation or parsing failed.
func Failed(lineage string, lane int, verdict gate.Verdict, applyError string) Patch {
	p := New(lineage, lane, 0, nil)
	p.Verdict = verdict
	p.ApplyError = applyError
	if verdict == gate.VerdictError {
		p.Status = StatusError
	} else {
		p.Status = StatusFail
	}
	return p
}

// WithVerdict returns a copy with the gate outcome applied.
func (p Patch) WithVerdict(v gate.Verdict, applyError string) Patch {
	p.Verdict = v
	p.ApplyError = applyError
	switch v {
	case gate.VerdictFail:
		p.Status = StatusFail
	case gate.VerdictError:
		p.Status = StatusError
	}
	return p
}

// WithBenchmark returns a copy with the measured speedup applied. Only a
// semantically passed candidate may be benchmarked.
func (p Patch) WithBenchmark(speedup float64, status Status) (Patch, error) {
	if p.Verdict != gate.VerdictSemanticallyPassed {
		return p, errors.Errorf("candidate %s has verdict %s, refusing benchmark", p.ID, p.Verdict)
	}
	p.Speedup = speedup
	p.Status = status
	return p, nil
}

// Benchmarked reports whether the candidate carries a measurement.
func (p Patch) Benchmarked() bool {
	return p.Verdict == gate.VerdictSemanticallyPassed && p.Status != StatusNone
}
