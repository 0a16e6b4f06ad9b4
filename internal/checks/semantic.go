package checks

import (
	"context"

	"sqlboost/internal/exec"
	"sqlboost/internal/gate"
	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

// Synthetic returns the mid-cost check: execute original and candidate
// against the synthetic dataset engine and compare result digests.
func Synthetic(engine exec.Engine) gate.CheckFunc {
	return compareCheck(engine, "synthetic")
}

// Equivalence returns the expensive check against the authoritative
// dataset. The gate guarantees it only runs after the cheaper stages pass.
func Equivalence(engine exec.Engine) gate.CheckFunc {
	return compareCheck(engine, "authoritative")
}

func compareCheck(engine exec.Engine, dataset string) gate.CheckFunc {
	return func(ctx context.Context, original, candidate work.Work) error {
		origRes, err := engine.Execute(ctx, original)
		if err != nil {
			// The baseline failing is never the candidate's fault.
			return errors.Wrapf(err, "%s baseline execution", dataset)
		}
		candRes, err := engine.Execute(ctx, candidate)
		if err != nil {
			if exec.IsUnavailable(err) || exec.IsTimeout(err) {
				return errors.Wrapf(err, "%s candidate execution", dataset)
			}
			if exec.IsStatementError(err) {
				return gate.Mismatchf("candidate rejected by engine: %v", err)
			}
			return errors.Wrapf(err, "%s candidate execution", dataset)
		}
		if origRes.RowCount != candRes.RowCount {
			return gate.Mismatchf("%s row count differs: %d vs %d", dataset, origRes.RowCount, candRes.RowCount)
		}
		if origRes.Digest != candRes.Digest {
			return gate.Mismatchf("%s result digest differs", dataset)
		}
		return nil
	}
}
