// Package survey computes the cheap per-job signals triage runs on:
// an estimated cost from one timed execution and structural scores from
// the parsed query shape.
package survey

import (
	"context"

	"sqlboost/internal/exec"
	"sqlboost/internal/triage"
	"sqlboost/internal/util"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver"
)

const maxTractability = 4

// DBSurveyor measures cost against a live engine and scores structure
// from the query AST.
type DBSurveyor struct {
	engine exec.Engine
}

// New builds a surveyor on top of an execution engine.
func New(engine exec.Engine) *DBSurveyor {
	return &DBSurveyor{engine: engine}
}

// Survey produces the signals for one job. An execution failure yields
// cost -1 (unknown) rather than an error; triage treats unknown cost
// conservatively.
func (s *DBSurveyor) Survey(ctx context.Context, job triage.Job) (triage.SurveyResult, error) {
	res := triage.SurveyResult{JobID: job.ID, EstimatedCostMs: -1}
	if s.engine != nil {
		if run, err := s.engine.Execute(ctx, job.Payload); err == nil {
			res.EstimatedCostMs = run.ElapsedMs
		} else {
			util.Detailf("survey %s: cost probe failed: %v", job.ID, err)
		}
	}
	tractability, bonus := scoreShape(job.Payload.Serialize())
	res.Tractability = tractability
	res.StructuralBonus = bonus
	return res, nil
}

// scoreShape derives tractability and the structural bonus from the
// parsed query. Unparseable input scores zero on both.
func scoreShape(sql string) (int, float64) {
	p := parser.New()
	stmt, err := p.ParseOneStmt(sql, "", "")
	if err != nil {
		return 0, 0
	}
	f := &featureVisitor{}
	stmt.Accept(f)
	tractability := f.joins + f.subqueries + f.aggregates
	if tractability > maxTractability {
		tractability = maxTractability
	}
	bonus := 0.0
	if f.orderBy {
		bonus += 0.4
	}
	if f.distinct {
		bonus += 0.3
	}
	if f.orPredicates {
		bonus += 0.3
	}
	if bonus > 1.0 {
		bonus = 1.0
	}
	return tractability, bonus
}

type featureVisitor struct {
	joins        int
	subqueries   int
	aggregates   int
	orderBy      bool
	distinct     bool
	orPredicates bool
}

func (f *featureVisitor) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.Join:
		if node.Right != nil {
			f.joins++
		}
	case *ast.SubqueryExpr:
		f.subqueries++
	case *ast.AggregateFuncExpr:
		f.aggregates++
	case *ast.SelectStmt:
		if node.OrderBy != nil && len(node.OrderBy.Items) > 0 {
			f.orderBy = true
		}
		if node.Distinct {
			f.distinct = true
		}
	case *ast.BinaryOperationExpr:
		if node.Op == opcode.LogicOr {
			f.orPredicates = true
		}
	}
	return n, false
}

func (f *featureVisitor) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}
