package survey

import (
	"context"
	"testing"

	"sqlboost/internal/exec"
	"sqlboost/internal/triage"
	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

type fixedEngine struct {
	elapsed float64
	err     error
}

func (e fixedEngine) Execute(ctx context.Context, w work.Work) (exec.Result, error) {
	if e.err != nil {
		return exec.Result{}, e.err
	}
	return exec.Result{ElapsedMs: e.elapsed}, nil
}

func TestSurveyMeasuresCost(t *testing.T) {
	s := New(fixedEngine{elapsed: 1234})
	res, err := s.Survey(context.Background(), triage.Job{ID: "q1", Payload: work.SQL("SELECT 1")})
	if err != nil {
		t.Fatalf("survey: %v", err)
	}
	if res.EstimatedCostMs != 1234 {
		t.Fatalf("cost = %v, want 1234", res.EstimatedCostMs)
	}
}

func TestSurveyProbeFailureMeansUnknownCost(t *testing.T) {
	s := New(fixedEngine{err: errors.New("engine unavailable")})
	res, err := s.Survey(context.Background(), triage.Job{ID: "q1", Payload: work.SQL("SELECT 1")})
	if err != nil {
		t.Fatalf("probe failures must not fail the survey: %v", err)
	}
	if res.EstimatedCostMs != -1 {
		t.Fatalf("cost = %v, want -1", res.EstimatedCostMs)
	}
}

func TestScoreShapeCountsFeatures(t *testing.T) {
	sql := "SELECT DISTINCT a.id, COUNT(*) FROM a JOIN b ON a.id = b.a_id " +
		"WHERE a.x = 1 OR a.y IN (SELECT y FROM c) GROUP BY a.id ORDER BY a.id"
	tractability, bonus := scoreShape(sql)
	// one join, one subquery, one aggregate
	if tractability != 3 {
		t.Fatalf("tractability = %d, want 3", tractability)
	}
	if bonus != 1.0 {
		t.Fatalf("order by + distinct + or should cap the bonus at 1.0, got %v", bonus)
	}
}

func TestScoreShapeSimpleQuery(t *testing.T) {
	tractability, bonus := scoreShape("SELECT id FROM t WHERE id = 1")
	if tractability != 0 || bonus != 0 {
		t.Fatalf("plain lookup should score zero, got %d/%v", tractability, bonus)
	}
}

func TestScoreShapeUnparseable(t *testing.T) {
	tractability, bonus := scoreShape("not sql at all")
	if tractability != 0 || bonus != 0 {
		t.Fatalf("unparseable input scores zero, got %d/%v", tractability, bonus)
	}
}
