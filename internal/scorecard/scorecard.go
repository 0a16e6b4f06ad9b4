// Package scorecard aggregates batch outcomes into a single report.
package scorecard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sqlboost/internal/scheduler"

	"github.com/pkg/errors"
)

// Winner is one of the best-performing jobs in a batch.
type Winner struct {
	JobID   string  `json:"job_id"`
	Speedup float64 `json:"speedup"`
	Output  string  `json:"output,omitempty"`
}

// JobError records a job-level failure and its cause.
type JobError struct {
	JobID string `json:"job_id"`
	Cause string `json:"cause"`
}

// Scorecard is the batch summary the run ends with. One job's failure
// never fails the batch; it shows up here instead.
type Scorecard struct {
	Jobs        int            `json:"jobs"`
	StatusCount map[string]int `json:"status_count"`
	BucketCount map[string]int `json:"bucket_count"`
	Resumed     int            `json:"resumed"`
	TopWinners  []Winner       `json:"top_winners,omitempty"`
	Errors      []JobError     `json:"errors,omitempty"`
}

// Compile folds per-job outcomes into a scorecard. topN bounds the
// winner list; non-positive values keep every winner.
func Compile(outcomes []scheduler.Outcome, topN int) Scorecard {
	sc := Scorecard{
		Jobs:        len(outcomes),
		StatusCount: make(map[string]int),
		BucketCount: make(map[string]int),
	}
	for _, out := range outcomes {
		sc.StatusCount[out.Result.StatusName]++
		sc.BucketCount[out.Triage.Bucket.String()]++
		if out.Resumed {
			sc.Resumed++
		}
		if out.Result.Err != "" {
			sc.Errors = append(sc.Errors, JobError{JobID: out.Result.JobID, Cause: out.Result.Err})
		}
		if out.Result.StatusName == "WIN" {
			sc.TopWinners = append(sc.TopWinners, Winner{
				JobID:   out.Result.JobID,
				Speedup: out.Result.BestSpeedup,
				Output:  out.Result.BestOutput,
			})
		}
	}
	sort.SliceStable(sc.TopWinners, func(i, j int) bool {
		return sc.TopWinners[i].Speedup > sc.TopWinners[j].Speedup
	})
	if topN > 0 && len(sc.TopWinners) > topN {
		sc.TopWinners = sc.TopWinners[:topN]
	}
	sort.Slice(sc.Errors, func(i, j int) bool { return sc.Errors[i].JobID < sc.Errors[j].JobID })
	return sc
}

// JSON renders the scorecard as indented JSON.
func (sc Scorecard) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode scorecard")
	}
	return data, nil
}

var statusOrder = []string{"WIN", "IMPROVED", "NEUTRAL", "REGRESSION", "ERROR", "SKIP"}

var bucketOrder = []string{"HIGH", "MEDIUM", "LOW", "SKIP"}

// Markdown renders the scorecard for humans.
func (sc Scorecard) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Rewrite scorecard\n\n%d jobs", sc.Jobs)
	if sc.Resumed > 0 {
		fmt.Fprintf(&b, " (%d resumed from checkpoint)", sc.Resumed)
	}
	b.WriteString("\n\n## Results\n\n")
	for _, status := range statusOrder {
		if n := sc.StatusCount[status]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", status, n)
		}
	}
	b.WriteString("\n## Triage\n\n")
	for _, bucket := range bucketOrder {
		if n := sc.BucketCount[bucket]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", bucket, n)
		}
	}
	if len(sc.TopWinners) > 0 {
		b.WriteString("\n## Top winners\n\n")
		for _, w := range sc.TopWinners {
			fmt.Fprintf(&b, "- %s: %.2fx\n", w.JobID, w.Speedup)
		}
	}
	if len(sc.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range sc.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", e.JobID, e.Cause)
		}
	}
	return b.String()
}
