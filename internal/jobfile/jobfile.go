// Package jobfile loads the batch input: a SQL file with one query per
// statement. Job ids are derived from the query text so they survive
// reordering and resume across runs.
package jobfile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"sqlboost/internal/triage"
	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

// Load reads the query batch at path.
func Load(path string) ([]triage.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read job file %s", path)
	}
	statements := Split(string(data))
	if len(statements) == 0 {
		return nil, errors.Errorf("job file %s has no statements", path)
	}
	jobs := make([]triage.Job, 0, len(statements))
	seen := make(map[string]struct{}, len(statements))
	for _, stmt := range statements {
		id := JobID(stmt)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		jobs = append(jobs, triage.Job{ID: id, Payload: work.SQL(stmt)})
	}
	return jobs, nil
}

// Split cuts a SQL script into statements. Line comments are dropped;
// semicolons inside quoted strings are respected.
func Split(script string) []string {
	var statements []string
	var b strings.Builder
	var quote byte
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if quote == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case quote != 0:
				b.WriteByte(ch)
				if ch == quote {
					quote = 0
				}
			case ch == '\'' || ch == '"' || ch == '`':
				quote = ch
				b.WriteByte(ch)
			case ch == ';':
				if stmt := strings.TrimSpace(b.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				b.Reset()
			default:
				b.WriteByte(ch)
			}
		}
		b.WriteByte('\n')
	}
	if stmt := strings.TrimSpace(b.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// JobID derives a stable id from the normalized query text.
func JobID(sql string) string {
	normalized := strings.Join(strings.Fields(sql), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "q_" + hex.EncodeToString(sum[:])[:12]
}
