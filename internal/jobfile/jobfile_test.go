package jobfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- head comment
SELECT a FROM t1;

SELECT b
  FROM t2
 WHERE note = 'semi; colon';
SELECT c FROM t3
`
	stmts := Split(script)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "SELECT a FROM t1" {
		t.Fatalf("unexpected first statement %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "semi; colon") {
		t.Fatalf("quoted semicolon must not split: %q", stmts[1])
	}
	if stmts[2] != "SELECT c FROM t3" {
		t.Fatalf("trailing statement without semicolon lost: %q", stmts[2])
	}
}

func TestJobIDStableUnderWhitespace(t *testing.T) {
	a := JobID("SELECT  a\nFROM t")
	b := JobID("SELECT a FROM t")
	if a != b {
		t.Fatalf("ids must ignore whitespace: %s vs %s", a, b)
	}
	if a == JobID("SELECT b FROM t") {
		t.Fatalf("different queries must get different ids")
	}
}

func TestLoadDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.sql")
	if err := os.WriteFile(path, []byte("SELECT 1;\nSELECT 1;\nSELECT 2;"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	jobs, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected dedup to 2 jobs, got %d", len(jobs))
	}
}

func TestLoadEmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.sql")
	if err := os.WriteFile(path, []byte("-- nothing here\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("empty job file must fail")
	}
}
