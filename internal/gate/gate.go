// Package gate runs candidates through an ordered, short-circuiting
// sequence of correctness checks of increasing cost.
package gate

import (
	"context"
	"fmt"

	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

// Verdict is the validation outcome attached to a candidate.
type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictPassStructural
	VerdictPassSynthetic
	VerdictSemanticallyPassed
	VerdictFail
	VerdictError
)

// String renders the verdict for logs and reports.
func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "PENDING"
	case VerdictPassStructural:
		return "PASS_STRUCTURAL"
	case VerdictPassSynthetic:
		return "PASS_SYNTHETIC"
	case VerdictSemanticallyPassed:
		return "SEMANTICALLY_PASSED"
	case VerdictFail:
		return "FAIL"
	case VerdictError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Stage names, in gate order.
const (
	StageStructural  = "structural"
	StageSynthetic   = "synthetic"
	StageEquivalence = "equivalence"
)

// ErrMismatch marks a check failure that is a legitimate verdict on the
// candidate. Checks wrap it via Mismatchf; any other error from a check is
// an infrastructure failure and yields VerdictError instead of VerdictFail.
var ErrMismatch = errors.New("candidate not equivalent")

// Mismatchf builds a semantic-mismatch error for a check to return.
func Mismatchf(format string, args ...any) error {
	return errors.Wrap(ErrMismatch, fmt.Sprintf(format, args...))
}

// StageError reports which stage stopped the gate and why.
type StageError struct {
	Stage string
	Infra bool
	Err   error
}

func (e *StageError) Error() string {
	if e.Infra {
		return fmt.Sprintf("%s check unavailable: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s check failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// CheckFunc validates a candidate against the original work item.
// A nil return passes the stage; wrap ErrMismatch to fail the candidate;
// any other error means the check itself could not run.
type CheckFunc func(ctx context.Context, original, candidate work.Work) error

// Gate is the ordered three-stage validator.
type Gate struct {
	structural  CheckFunc
	synthetic   CheckFunc
	equivalence CheckFunc
}

// New builds a gate from the three supplied checks.
func New(structural, synthetic, equivalence CheckFunc) *Gate {
	return &Gate{structural: structural, synthetic: synthetic, equivalence: equivalence}
}

// Validate runs the stages in order and short-circuits on the first
// non-pass. The equivalence stage is never invoked unless both cheaper
// stages passed.
func (g *Gate) Validate(ctx context.Context, original, candidate work.Work) (Verdict, error) {
	stages := []struct {
		name  string
		check CheckFunc
		pass  Verdict
	}{
		{StageStructural, g.structural, VerdictPassStructural},
		{StageSynthetic, g.synthetic, VerdictPassSynthetic},
		{StageEquivalence, g.equivalence, VerdictSemanticallyPassed},
	}
	verdict := VerdictPending
	for _, stage := range stages {
		if stage.check == nil {
			verdict = stage.pass
			continue
		}
		err := stage.check(ctx, original, candidate)
		if err == nil {
			verdict = stage.pass
			continue
		}
		if errors.Is(err, ErrMismatch) {
			return VerdictFail, &StageError{Stage: stage.name, Err: err}
		}
		return VerdictError, &StageError{Stage: stage.name, Infra: true, Err: err}
	}
	return verdict, nil
}

// IsStructuralFail reports whether err is a structural-stage mismatch,
// the only gate outcome eligible for error-feedback retry.
func IsStructuralFail(err error) bool {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return false
	}
	return stageErr.Stage == StageStructural && !stageErr.Infra
}

// IsInfra reports whether err means a check could not run at all.
func IsInfra(err error) bool {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return false
	}
	return stageErr.Infra
}
