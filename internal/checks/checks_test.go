package checks

import (
	"context"
	"testing"

	"sqlboost/internal/exec"
	"sqlboost/internal/gate"
	"sqlboost/internal/work"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

func TestStructuralAcceptsKnownTables(t *testing.T) {
	check := Structural([]string{"orders", "customers"})
	err := check(context.Background(), work.SQL("SELECT * FROM orders"),
		work.SQL("SELECT o.id FROM orders o JOIN customers c ON o.cid = c.id"))
	if err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestStructuralRejectsUnknownTable(t *testing.T) {
	check := Structural([]string{"orders"})
	err := check(context.Background(), work.SQL("SELECT * FROM orders"),
		work.SQL("SELECT * FROM order_items"))
	if err == nil {
		t.Fatalf("expected failure for unknown table")
	}
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("structural rejection must be a mismatch: %v", err)
	}
}

func TestStructuralRejectsMalformedSQL(t *testing.T) {
	check := Structural(nil)
	err := check(context.Background(), work.SQL("SELECT 1"), work.SQL("SELEKT 1 FROM"))
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("parse failure must be a mismatch: %v", err)
	}
}

func TestStructuralRejectsDML(t *testing.T) {
	check := Structural([]string{"orders"})
	err := check(context.Background(), work.SQL("SELECT 1"), work.SQL("DELETE FROM orders"))
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("DML must be rejected: %v", err)
	}
}

func TestStructuralIgnoresCTENames(t *testing.T) {
	check := Structural([]string{"orders"})
	err := check(context.Background(), work.SQL("SELECT 1"),
		work.SQL("WITH recent AS (SELECT * FROM orders) SELECT * FROM recent"))
	if err != nil {
		t.Fatalf("CTE names are not table references: %v", err)
	}
}

func TestReferencedTables(t *testing.T) {
	tables, err := ReferencedTables("SELECT o.id FROM orders o JOIN customers c ON o.cid = c.id")
	if err != nil {
		t.Fatalf("referenced tables: %v", err)
	}
	if len(tables) != 2 || tables[0] != "customers" || tables[1] != "orders" {
		t.Fatalf("unexpected tables: %v", tables)
	}
}

type pairEngine struct {
	results map[string]exec.Result
	errs    map[string]error
}

func (e *pairEngine) Execute(ctx context.Context, w work.Work) (exec.Result, error) {
	key := w.Serialize()
	if err, ok := e.errs[key]; ok {
		return exec.Result{}, err
	}
	return e.results[key], nil
}

func TestSyntheticComparesDigests(t *testing.T) {
	engine := &pairEngine{results: map[string]exec.Result{
		"A": {RowCount: 3, Digest: "d1"},
		"B": {RowCount: 3, Digest: "d1"},
		"C": {RowCount: 3, Digest: "d2"},
	}}
	check := Synthetic(engine)
	if err := check(context.Background(), work.SQL("A"), work.SQL("B")); err != nil {
		t.Fatalf("matching digests should pass: %v", err)
	}
	err := check(context.Background(), work.SQL("A"), work.SQL("C"))
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("digest mismatch must be semantic: %v", err)
	}
}

func TestEquivalenceRowCountMismatch(t *testing.T) {
	engine := &pairEngine{results: map[string]exec.Result{
		"A": {RowCount: 3, Digest: "d1"},
		"B": {RowCount: 2, Digest: "d1"},
	}}
	err := Equivalence(engine)(context.Background(), work.SQL("A"), work.SQL("B"))
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("row count mismatch must be semantic: %v", err)
	}
}

func TestCompareInfraErrorIsNotMismatch(t *testing.T) {
	engine := &pairEngine{
		results: map[string]exec.Result{"A": {RowCount: 1, Digest: "d"}},
		errs:    map[string]error{"B": errors.New("connection refused")},
	}
	err := Synthetic(engine)(context.Background(), work.SQL("A"), work.SQL("B"))
	if err == nil || errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("engine failure must not read as a mismatch: %v", err)
	}
}

func TestCompareCandidateStatementErrorIsMismatch(t *testing.T) {
	engine := &pairEngine{
		results: map[string]exec.Result{"A": {RowCount: 1, Digest: "d"}},
		errs:    map[string]error{"B": &mysql.MySQLError{Number: 1054, Message: "Unknown column"}},
	}
	err := Synthetic(engine)(context.Background(), work.SQL("A"), work.SQL("B"))
	if !errors.Is(err, gate.ErrMismatch) {
		t.Fatalf("candidate statement error should fail the candidate: %v", err)
	}
}
