package scorecard

import (
	"strings"
	"testing"

	"sqlboost/internal/scheduler"
	"sqlboost/internal/session"
	"sqlboost/internal/triage"
)

func outcome(jobID, status string, bucket triage.Bucket, speedup float64, errMsg string) scheduler.Outcome {
	return scheduler.Outcome{
		Triage: triage.Result{JobID: jobID, Bucket: bucket},
		Result: session.Result{
			JobID:       jobID,
			StatusName:  status,
			BestSpeedup: speedup,
			Err:         errMsg,
		},
		Skipped: status == "SKIP",
	}
}

func TestCompileCountsAndWinners(t *testing.T) {
	outcomes := []scheduler.Outcome{
		outcome("q1", "WIN", triage.BucketHigh, 2.5, ""),
		outcome("q2", "WIN", triage.BucketMedium, 1.2, ""),
		outcome("q3", "NEUTRAL", triage.BucketMedium, 1.0, ""),
		outcome("q4", "ERROR", triage.BucketHigh, 0, "oracle unreachable"),
		outcome("q5", "SKIP", triage.BucketSkip, 0, ""),
	}
	sc := Compile(outcomes, 1)
	if sc.Jobs != 5 {
		t.Fatalf("jobs = %d", sc.Jobs)
	}
	if sc.StatusCount["WIN"] != 2 || sc.StatusCount["ERROR"] != 1 || sc.StatusCount["SKIP"] != 1 {
		t.Fatalf("unexpected status counts: %+v", sc.StatusCount)
	}
	if sc.BucketCount["HIGH"] != 2 || sc.BucketCount["MEDIUM"] != 2 || sc.BucketCount["SKIP"] != 1 {
		t.Fatalf("unexpected bucket counts: %+v", sc.BucketCount)
	}
	if len(sc.TopWinners) != 1 || sc.TopWinners[0].JobID != "q1" {
		t.Fatalf("topN must keep the best winner only: %+v", sc.TopWinners)
	}
	if len(sc.Errors) != 1 || sc.Errors[0].Cause != "oracle unreachable" {
		t.Fatalf("job errors must surface with their cause: %+v", sc.Errors)
	}
}

func TestMarkdownMentionsEveryPresentStatus(t *testing.T) {
	sc := Compile([]scheduler.Outcome{
		outcome("q1", "WIN", triage.BucketHigh, 1.5, ""),
		outcome("q2", "REGRESSION", triage.BucketLow, 0.8, ""),
	}, 0)
	md := sc.Markdown()
	for _, want := range []string{"WIN: 1", "REGRESSION: 1", "HIGH: 1", "LOW: 1", "q1: 1.50x"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestJSONRoundTripsStatusCounts(t *testing.T) {
	sc := Compile([]scheduler.Outcome{outcome("q1", "IMPROVED", triage.BucketMedium, 1.05, "")}, 0)
	data, err := sc.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(string(data), `"IMPROVED": 1`) {
		t.Fatalf("unexpected json: %s", data)
	}
}
