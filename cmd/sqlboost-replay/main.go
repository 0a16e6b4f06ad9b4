package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"sqlboost/internal/checkpoint"
	"sqlboost/internal/checks"
	"sqlboost/internal/config"
	"sqlboost/internal/exec"
	"sqlboost/internal/gate"
	"sqlboost/internal/jobfile"
	"sqlboost/internal/timing"
	"sqlboost/internal/util"
	"sqlboost/internal/work"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	queriesPath := flag.String("queries", "queries.sql", "path to the SQL batch the checkpoint was built from")
	jobID := flag.String("job", "", "job id to replay (empty replays every checkpointed win)")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.SetVerbose(cfg.Logging.Verbose)

	jobs, err := jobfile.Load(*queriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load queries: %v\n", err)
		os.Exit(1)
	}
	check, err := checkpoint.Load(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load checkpoint: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := exec.Open(cfg.DSN, cfg.StatementTimeoutMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to db: %v\n", err)
		os.Exit(1)
	}
	defer util.CloseWithErr(db, "primary db")

	tables, err := db.Tables(ctx)
	if err != nil {
		util.Warnf("could not list tables: %v", err)
	}
	g := gate.New(checks.Structural(tables), checks.Synthetic(db), checks.Equivalence(db))
	timer := timing.New(db, cfg.Timing)

	replayed := 0
	failed := 0
	for _, job := range jobs {
		if *jobID != "" && job.ID != *jobID {
			continue
		}
		prev, ok := check.Get(job.ID)
		if !ok || prev.BestOutput == "" {
			if *jobID != "" {
				fmt.Fprintf(os.Stderr, "no checkpointed rewrite for %s\n", job.ID)
				os.Exit(1)
			}
			continue
		}
		replayed++
		if !replay(ctx, g, timer, job.ID, job.Payload, work.SQL(prev.BestOutput), prev.BestSpeedup) {
			failed++
		}
	}
	if replayed == 0 {
		fmt.Fprintln(os.Stderr, "nothing to replay")
		os.Exit(1)
	}
	util.Highlightf("replayed %d rewrite(s), %d no longer hold", replayed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// replay re-validates and re-measures one checkpointed rewrite. It
// reports whether the rewrite still passes and still helps.
func replay(ctx context.Context, g *gate.Gate, timer *timing.Engine, jobID string, original, rewrite work.Work, recordedSpeedup float64) bool {
	verdict, err := g.Validate(ctx, original, rewrite)
	if err != nil {
		util.Errorf("%s: %s (%v)", jobID, verdict, err)
		return false
	}
	baseMs, err := timer.Measure(ctx, original)
	if err != nil {
		util.Errorf("%s: baseline measurement: %v", jobID, err)
		return false
	}
	candMs, err := timer.Measure(ctx, rewrite)
	if err != nil {
		util.Errorf("%s: rewrite measurement: %v", jobID, err)
		return false
	}
	speedup, err := timing.Speedup(baseMs, candMs)
	if err != nil {
		util.Errorf("%s: %v", jobID, err)
		return false
	}
	util.Infof("%s: %s speedup=%.2f (was %.2f)", jobID, verdict, speedup, recordedSpeedup)
	return speedup >= 1.0
}
