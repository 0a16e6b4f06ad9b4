package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqlboost/internal/candidate"
	"sqlboost/internal/gate"
	"sqlboost/internal/session"
	"sqlboost/internal/work"
)

func TestWriteSummaryIsStableAcrossMapOrder(t *testing.T) {
	r := New(t.TempDir())
	c, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	summary := Summarize(session.Result{
		JobID:       "q1",
		StatusName:  "WIN",
		BestSpeedup: 2.5,
		RoundsUsed:  1,
	}, nil)
	summary.Details = map[string]any{"zeta": 1, "alpha": map[string]any{"b": 2, "a": 1}}
	if err := r.WriteSummary(c, summary); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(c.Dir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	text := string(data)
	if strings.Index(text, `"alpha"`) > strings.Index(text, `"zeta"`) {
		t.Fatalf("details keys must be sorted:\n%s", text)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("summary is not valid json: %v", err)
	}
	if decoded["job_id"] != "q1" || decoded["status"] != "WIN" {
		t.Fatalf("unexpected summary payload: %v", decoded)
	}
	if decoded["case_id"] != c.ID {
		t.Fatalf("case id must be stamped into the summary")
	}
}

func TestSummarizeRecordsCandidates(t *testing.T) {
	p := candidate.New("join_reorder", 1, 1.0, work.SQL("SELECT fast"))
	p = p.WithVerdict(gate.VerdictSemanticallyPassed, "")
	p, err := p.WithBenchmark(1.4, candidate.StatusWin)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	failed := candidate.Failed("index_hint", 2, gate.VerdictError, "oracle unreachable")

	summary := Summarize(session.Result{JobID: "q1", StatusName: "WIN"}, []candidate.Patch{p, failed})
	if len(summary.Candidates) != 2 {
		t.Fatalf("expected 2 candidate records, got %d", len(summary.Candidates))
	}
	win := summary.Candidates[0]
	if win.Verdict != "SEMANTICALLY_PASSED" || win.Status != "WIN" || win.Speedup != 1.4 {
		t.Fatalf("unexpected winner record: %+v", win)
	}
	bad := summary.Candidates[1]
	if bad.Status != "" || bad.Speedup != 0 {
		t.Fatalf("unbenchmarked candidates must not carry a status: %+v", bad)
	}
	if bad.ApplyError != "oracle unreachable" {
		t.Fatalf("apply error lost: %+v", bad)
	}
}

func TestWriteCaseArchive(t *testing.T) {
	r := New(t.TempDir())
	c, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	if err := r.WriteSQL(c, "original.sql", []string{"SELECT orig"}); err != nil {
		t.Fatalf("write sql: %v", err)
	}
	if err := r.WriteSQL(c, "rewrite.sql", []string{"SELECT fast"}); err != nil {
		t.Fatalf("write sql: %v", err)
	}
	name, codec, err := r.WriteCaseArchive(c)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if name != CaseArchiveName || codec != CaseArchiveCodec {
		t.Fatalf("unexpected archive descriptor %s/%s", name, codec)
	}
	info, err := os.Stat(filepath.Join(c.Dir, name))
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("archive is empty")
	}
}
