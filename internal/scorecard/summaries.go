package scorecard

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sqlboost/internal/report"

	"github.com/pkg/errors"
)

// FromSummaries rebuilds a scorecard from persisted case summaries, for
// recomputing results long after the run finished.
func FromSummaries(summaries []report.Summary, topN int) Scorecard {
	sc := Scorecard{
		Jobs:        len(summaries),
		StatusCount: make(map[string]int),
		BucketCount: make(map[string]int),
	}
	for _, s := range summaries {
		sc.StatusCount[s.Status]++
		if s.Bucket != "" {
			sc.BucketCount[s.Bucket]++
		}
		if s.Error != "" {
			sc.Errors = append(sc.Errors, JobError{JobID: s.JobID, Cause: s.Error})
		}
		if s.Status == "WIN" {
			sc.TopWinners = append(sc.TopWinners, Winner{JobID: s.JobID, Speedup: s.BestSpeedup})
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

// LoadSummaries walks a report directory and decodes every summary.json.
func LoadSummaries(dir string) ([]report.Summary, error) {
	var summaries []report.Summary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "summary.json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		var s report.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrapf(err, "decode %s", path)
		}
		summaries = append(summaries, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
