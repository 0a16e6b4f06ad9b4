// Package scheduler triages a batch of jobs and executes their search
// sessions under a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sqlboost/internal/candidate"
	"sqlboost/internal/checkpoint"
	"sqlboost/internal/config"
	"sqlboost/internal/session"
	"sqlboost/internal/triage"
	"sqlboost/internal/util"

	"github.com/pkg/errors"
)

// Approver blocks until the triage plan is released for execution, or
// returns an error to abort the batch. Nil means run immediately.
type Approver func(ctx context.Context, plan []triage.Result) error

// Outcome pairs a job's scheduling decision with its terminal result.
// Patches is the session's full candidate record, kept for reporting.
type Outcome struct {
	Triage  triage.Result
	Result  session.Result
	Patches []candidate.Patch
	Skipped bool
	Resumed bool
}

// Scheduler owns one batch: triage, ordering, dispatch, checkpointing.
type Scheduler struct {
	cfg      config.Config
	surveyor triage.Surveyor
	deps     session.Deps
	check    *checkpoint.File
	approve  Approver

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// New validates the batch configuration. A non-positive concurrency is a
// construction-time failure; nothing is dispatched.
func New(cfg config.Config, surveyor triage.Surveyor, deps session.Deps, check *checkpoint.File, approve Approver) (*Scheduler, error) {
	if cfg.Concurrency <= 0 {
		return nil, errors.Errorf("scheduler: concurrency must be positive, got %d", cfg.Concurrency)
	}
	if surveyor == nil {
		return nil, errors.New("scheduler: surveyor is required")
	}
	return &Scheduler{cfg: cfg, surveyor: surveyor, deps: deps, check: check, approve: approve}, nil
}

// Pause closes the advisory pause gate. Running sessions block on it at
// their next round boundary; nothing in flight is interrupted.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
}

// Resume releases every session blocked on the pause gate.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
}

// pauseWait blocks until the gate is released or ctx ends.
func (s *Scheduler) pauseWait(ctx context.Context) error {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return ctx.Err()
	}
	release := s.resume
	s.mu.Unlock()
	select {
	case <-release:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Plan surveys and triages every job. The returned slice is sorted
// descending by priority, ties keeping the original job order.
func (s *Scheduler) Plan(ctx context.Context, jobs []triage.Job) ([]triage.Result, error) {
	plan := make([]triage.Result, 0, len(jobs))
	for _, job := range jobs {
		if job.ID == "" {
			return nil, errors.New("scheduler: job with empty id")
		}
		survey, err := s.surveyor.Survey(ctx, job)
		if err != nil {
			return nil, errors.Wrapf(err, "survey %s", job.ID)
		}
		plan = append(plan, triage.Decide(job, survey, s.prior(job.ID), s.cfg.History.SeedBest, s.cfg.Triage))
	}
	sort.SliceStable(plan, func(i, j int) bool {
		return plan[i].PriorityScore > plan[j].PriorityScore
	})
	return plan, nil
}

// prior looks up the best known earlier outcome for a job.
func (s *Scheduler) prior(jobID string) *triage.Prior {
	if s.check == nil {
		return nil
	}
	res, ok := s.check.Get(jobID)
	if !ok || res.BestOutput == "" {
		return nil
	}
	return &triage.Prior{BestOutput: res.BestOutput, Speedup: res.BestSpeedup, Source: "checkpoint"}
}

// Run executes the whole batch and returns one outcome per job, in plan
// order. A single job's failure never aborts the batch.
func (s *Scheduler) Run(ctx context.Context, jobs []triage.Job) ([]Outcome, error) {
	plan, err := s.Plan(ctx, jobs)
	if err != nil {
		return nil, err
	}
	if s.approve != nil {
		if err := s.approve(ctx, plan); err != nil {
			return nil, errors.Wrap(err, "triage plan not approved")
		}
	}

	outcomes := make([]Outcome, len(plan))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Concurrency)
	for i, tr := range plan {
		if out, done := s.settleWithoutDispatch(tr); done {
			outcomes[i] = out
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, tr triage.Result) {
			defer wg.Done()
			defer func() { <-sem }()
			res, patches := s.runJob(ctx, tr)
			outcomes[i] = Outcome{Triage: tr, Result: res, Patches: patches}
			s.record(res)
		}(i, tr)
	}
	wg.Wait()

	if s.check != nil {
		if err := s.check.Save(); err != nil {
			util.Warnf("checkpoint save failed: %v", err)
		}
	}
	return outcomes, nil
}

// settleWithoutDispatch handles the two cases that never reach a
// session: SKIP-bucket jobs and already-completed jobs on resume.
func (s *Scheduler) settleWithoutDispatch(tr triage.Result) (Outcome, bool) {
	if tr.Bucket == triage.BucketSkip {
		util.Detailf("job %s skipped (bucket=SKIP)", tr.JobID)
		return Outcome{
			Triage:  tr,
			Result:  session.Result{JobID: tr.JobID, StatusName: "SKIP"},
			Skipped: true,
		}, true
	}
	if s.check != nil && s.cfg.History.Enabled {
		if prev, ok := s.check.Get(tr.JobID); ok && prev.Err == "" {
			util.Detailf("job %s resumed from checkpoint (%s %.2fx)", tr.JobID, prev.StatusName, prev.BestSpeedup)
			return Outcome{Triage: tr, Result: prev, Resumed: true}, true
		}
	}
	return Outcome{}, false
}

// runJob runs one session, catching per-job panics at the job boundary.
func (s *Scheduler) runJob(ctx context.Context, tr triage.Result) (res session.Result, patches []candidate.Patch) {
	defer func() {
		if r := recover(); r != nil {
			util.Errorf("job %s panicked: %v", tr.JobID, r)
			res = session.Result{
				JobID:      tr.JobID,
				Status:     candidate.StatusError,
				StatusName: candidate.StatusError.String(),
				Err:        fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	deps := s.deps
	deps.Pause = s.pauseWait
	util.Infof("job %s start bucket=%s priority=%.1f rounds=%d", tr.JobID, tr.Bucket, tr.PriorityScore, tr.MaxRounds)
	sess := session.New(s.cfg.Session, deps)
	res = sess.Run(ctx, tr.JobID, tr.Payload, tr.SeedPayload, tr.MaxRounds)
	patches = sess.Store().Snapshot()
	if res.Err != "" {
		util.Warnf("job %s %s: %s", tr.JobID, res.StatusName, res.Err)
	} else {
		util.Highlightf("job %s %s speedup=%.2f rounds=%d", tr.JobID, res.StatusName, res.BestSpeedup, res.RoundsUsed)
	}
	return res, patches
}

func (s *Scheduler) record(res session.Result) {
	if s.check == nil {
		return
	}
	s.check.Put(res.JobID, res)
}
