package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"sqlboost/internal/checkpoint"
	"sqlboost/internal/checks"
	"sqlboost/internal/config"
	"sqlboost/internal/exec"
	"sqlboost/internal/gate"
	"sqlboost/internal/jobfile"
	"sqlboost/internal/oracle"
	"sqlboost/internal/report"
	"sqlboost/internal/scheduler"
	"sqlboost/internal/scorecard"
	"sqlboost/internal/session"
	"sqlboost/internal/survey"
	"sqlboost/internal/timing"
	"sqlboost/internal/triage"
	"sqlboost/internal/uploader"
	"sqlboost/internal/util"

	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	queriesPath := flag.String("queries", "queries.sql", "path to the SQL batch to optimize")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.SetVerbose(cfg.Logging.Verbose)
	util.Infof("starting sqlboost with %d worker(s)", cfg.Concurrency)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	jobs, err := jobfile.Load(*queriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load queries: %v\n", err)
		os.Exit(1)
	}
	util.Infof("loaded %d job(s) from %s", len(jobs), *queriesPath)

	ctx := context.Background()
	db, err := exec.Open(cfg.DSN, cfg.StatementTimeoutMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to db: %v\n", err)
		os.Exit(1)
	}
	defer util.CloseWithErr(db, "primary db")
	if err := db.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "db unreachable: %v\n", err)
		os.Exit(1)
	}

	syntheticDB := db
	if cfg.SyntheticDSN != cfg.DSN {
		syntheticDB, err = exec.Open(cfg.SyntheticDSN, cfg.StatementTimeoutMs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to synthetic db: %v\n", err)
			os.Exit(1)
		}
		defer util.CloseWithErr(syntheticDB, "synthetic db")
	}

	tables, err := db.Tables(ctx)
	if err != nil {
		util.Warnf("could not list tables, structural check runs without a known set: %v", err)
	}

	var gen oracle.Generator = oracle.NewCommand(
		cfg.Oracle.Command,
		cfg.Oracle.Args,
		time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second,
	)
	if cfg.Session.CacheSize > 0 {
		cached, err := oracle.NewCached(gen, cfg.Session.CacheSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build oracle cache: %v\n", err)
			os.Exit(1)
		}
		gen = cached
	}

	var check *checkpoint.File
	if cfg.History.Path != "" {
		check, err = checkpoint.Load(cfg.History.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load checkpoint: %v\n", err)
			os.Exit(1)
		}
		if check.Len() > 0 {
			util.Infof("checkpoint %s holds %d prior result(s)", cfg.History.Path, check.Len())
		}
	}

	var approve scheduler.Approver
	if cfg.Triage.RequireApproval {
		approve = consoleApprover
	}

	deps := session.Deps{
		Generator: gen,
		Gate:      gate.New(checks.Structural(tables), checks.Synthetic(syntheticDB), checks.Equivalence(db)),
		Timing:    timing.New(db, cfg.Timing),
		Rand:      rand.New(rand.NewSource(cfg.Seed)),
	}
	sched, err := scheduler.New(cfg, survey.New(db), deps, check, approve)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler setup failed: %v\n", err)
		os.Exit(1)
	}

	outcomes, err := sched.Run(ctx, jobs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	sc := scorecard.Compile(outcomes, 10)
	util.Highlightf("scorecard:\n%s", sc.Markdown())
	writeArtifacts(ctx, cfg, outcomes, sc)
}

// writeArtifacts persists case reports for wins and failures plus the
// batch scorecard, then uploads cases if a storage backend is enabled.
func writeArtifacts(ctx context.Context, cfg config.Config, outcomes []scheduler.Outcome, sc scorecard.Scorecard) {
	if cfg.Report.OutputDir == "" {
		return
	}
	reporter := report.New(cfg.Report.OutputDir)
	up, err := uploader.New(cfg.Storage)
	if err != nil {
		util.Warnf("uploader setup failed, continuing without uploads: %v", err)
		up = uploader.NoopUploader{}
	}
	for _, out := range outcomes {
		if out.Skipped || out.Resumed {
			continue
		}
		if out.Result.StatusName != "WIN" && out.Result.Err == "" {
			continue
		}
		if err := writeCase(ctx, reporter, up, cfg, out); err != nil {
			util.Warnf("case report for %s failed: %v", out.Result.JobID, err)
		}
	}
	if data, err := sc.JSON(); err == nil {
		path := filepath.Join(cfg.Report.OutputDir, "scorecard.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			util.Warnf("scorecard write failed: %v", err)
		}
	}
}

func writeCase(ctx context.Context, reporter *report.Reporter, up uploader.Uploader, cfg config.Config, out scheduler.Outcome) error {
	c, err := reporter.NewCase()
	if err != nil {
		return err
	}
	if err := reporter.WriteSQL(c, "original.sql", []string{out.Triage.Payload.Serialize()}); err != nil {
		return err
	}
	if out.Result.BestOutput != "" {
		if err := reporter.WriteSQL(c, "rewrite.sql", []string{out.Result.BestOutput}); err != nil {
			return err
		}
	}
	summary := report.Summarize(out.Result, out.Patches)
	summary.Bucket = out.Triage.Bucket.String()
	summary.Details = map[string]any{
		"priority_score": out.Triage.PriorityScore,
		"max_rounds":     out.Triage.MaxRounds,
	}
	if cfg.RunInfo != nil && !cfg.RunInfo.IsZero() {
		summary.Details["run_info"] = cfg.RunInfo
	}
	summary.ArchiveName = report.CaseArchiveName
	summary.ArchiveCodec = report.CaseArchiveCodec
	if err := reporter.WriteSummary(c, summary); err != nil {
		return err
	}
	if _, _, err := reporter.WriteCaseArchive(c); err != nil {
		summary.ArchiveName = ""
		summary.ArchiveCodec = ""
		_ = reporter.WriteSummary(c, summary)
		return err
	}
	if up.Enabled() {
		location, err := up.UploadDir(ctx, c.Dir)
		if err != nil {
			util.Warnf("upload for %s failed: %v", out.Result.JobID, err)
		} else {
			summary.UploadLocation = location
			if err := reporter.WriteSummary(c, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func consoleApprover(ctx context.Context, plan []triage.Result) error {
	util.Highlightf("triage plan (%d job(s)):", len(plan))
	for _, tr := range plan {
		util.Infof("  %-16s %-6s priority=%-7.1f rounds=%d", tr.JobID, tr.Bucket, tr.PriorityScore, tr.MaxRounds)
	}
	fmt.Print("run this plan? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	if line != "y\n" && line != "Y\n" && line != "yes\n" {
		return fmt.Errorf("plan rejected")
	}
	return nil
}
