// Package session runs the bounded search-and-validate loop for one job.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"sqlboost/internal/candidate"
	"sqlboost/internal/config"
	"sqlboost/internal/gate"
	"sqlboost/internal/oracle"
	"sqlboost/internal/util"
	"sqlboost/internal/work"
)

// Measurer is the timing engine seen by the session.
type Measurer interface {
	Measure(ctx context.Context, w work.Work) (float64, error)
}

// PauseFunc blocks while the scheduler holds the advisory pause flag.
// Sessions call it only at round boundaries, never mid-round.
type PauseFunc func(ctx context.Context) error

// Deps are the collaborators a session runs against.
type Deps struct {
	Generator oracle.Generator
	Parse     oracle.ParseFunc
	Gate      *gate.Gate
	Timing    Measurer
	Pause     PauseFunc
	Rand      *rand.Rand
}

// Result is the terminal outcome of one job's search.
type Result struct {
	JobID          string            `json:"job_id"`
	Status         candidate.Status  `json:"-"`
	StatusName     string            `json:"status"`
	BestSpeedup    float64           `json:"best_speedup"`
	BestOutput     string            `json:"best_output,omitempty"`
	BestLineage    []string          `json:"best_lineage,omitempty"`
	RoundsUsed     int               `json:"rounds_used"`
	GeneratorCalls int               `json:"generator_calls"`
	Err            string            `json:"error,omitempty"`
}

// Session searches for a faster, equivalent rewrite of one work item.
type Session struct {
	cfg    config.SessionConfig
	deps   Deps
	store  *candidate.Store
	bandit *util.Bandit
}

// New constructs a session. The candidate store is created here and owned
// exclusively by this session.
func New(cfg config.SessionConfig, deps Deps) *Session {
	if deps.Parse == nil {
		deps.Parse = oracle.Parse
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(1))
	}
	s := &Session{cfg: cfg, deps: deps, store: candidate.NewStore()}
	if cfg.Adaptive && len(cfg.Strategies) > 1 {
		s.bandit = util.NewBandit(len(cfg.Strategies), cfg.UCBExploration)
	}
	return s
}

// Store exposes the candidate record for reporting.
func (s *Session) Store() *candidate.Store {
	return s.store
}

// Run executes up to maxRounds rounds of generation, validation and
// benchmarking. seed is the payload fed to the generator (the original, or
// a historical best when seeding is enabled); speedups are always measured
// against original.
func (s *Session) Run(ctx context.Context, jobID string, original, seed work.Work, maxRounds int) Result {
	res := Result{JobID: jobID, Status: candidate.StatusError, BestSpeedup: 0}
	if maxRounds <= 0 {
		res.Err = "no search budget"
		res.StatusName = res.Status.String()
		return res
	}
	baselineMs, err := s.deps.Timing.Measure(ctx, original)
	if err != nil {
		res.Err = fmt.Sprintf("baseline measurement: %v", err)
		res.StatusName = res.Status.String()
		return res
	}
	util.Detailf("session %s baseline=%.2fms rounds=%d", jobID, baselineMs, maxRounds)

	base := seed
	if base == nil {
		base = original
	}
	calls := 0
	stop := false
	for round := 0; round < maxRounds && !stop; round++ {
		if s.deps.Pause != nil {
			if err := s.deps.Pause(ctx); err != nil {
				res.Err = err.Error()
				break
			}
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err().Error()
			break
		}
		lanes := s.cfg.WideLanes
		if round > 0 {
			lanes = s.cfg.StrikeLanes
		}
		roundCalls := s.runRound(ctx, round, lanes, original, base, baselineMs)
		calls += roundCalls
		res.RoundsUsed = round + 1

		best, ok := s.store.Best()
		if ok {
			// Later rounds refine the best rewrite found so far.
			base = best.Output
			if best.Status == candidate.StatusWin && s.cfg.TargetSpeedup > 0 && best.Speedup >= s.cfg.TargetSpeedup {
				util.Detailf("session %s early stop at round %d speedup=%.2f", jobID, round, best.Speedup)
				stop = true
			}
		}
	}
	res.GeneratorCalls = calls
	if s.bandit != nil {
		snap := s.bandit.Snapshot()
		util.Detailf("session %s strategy pulls=%v rewards=%v", jobID, snap.Counts, snap.Rewards)
	}

	best, ok := s.store.Best()
	if !ok {
		if res.Err == "" {
			res.Err = "no semantically passed candidates"
		}
		res.StatusName = res.Status.String()
		return res
	}
	res.Status = best.Status
	res.BestSpeedup = best.Speedup
	res.BestOutput = best.Output.Serialize()
	res.BestLineage = s.lineageOf(best)
	res.Err = ""
	res.StatusName = res.Status.String()
	return res
}

// runRound fans lanes out, waits for all of them, and returns the number
// of generator calls spent. Lane failures never fail the round.
func (s *Session) runRound(ctx context.Context, round, lanes int, original, base work.Work, baselineMs float64) int {
	strategies := s.pickStrategies(lanes)
	var wg sync.WaitGroup
	callCh := make(chan int, lanes)
	for lane := 0; lane < lanes; lane++ {
		wg.Add(1)
		go func(lane int, strategy string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					util.Errorf("lane %d panic: %v", lane, r)
					s.store.Add(candidate.Failed(strategy, lane, gate.VerdictError, fmt.Sprintf("lane panic: %v", r)))
				}
			}()
			callCh <- s.runLane(ctx, round, lane, strategy, original, base, baselineMs)
		}(lane, strategies[lane])
	}
	wg.Wait()
	close(callCh)
	total := 0
	for n := range callCh {
		total += n
	}
	return total
}

// runLane performs one generation attempt plus at most one error-feedback
// retry, then validates and benchmarks the survivor.
func (s *Session) runLane(ctx context.Context, round, lane int, strategy string, original, base work.Work, baselineMs float64) int {
	input := oracle.PromptInput{Base: base, Strategy: strategy}
	if !work.Equal(base, original) {
		input.Base = original
		input.PriorBest = base
	}
	calls := 0
	retried := false
	for {
		prompt := oracle.BuildPrompt(input)
		resp, err := s.deps.Generator.Generate(ctx, prompt)
		calls++
		if err != nil {
			if oracle.IsRetryable(err) && !retried {
				retried = true
				input.Feedback = append(input.Feedback, oracle.Attempt{Err: err.Error()})
				continue
			}
			s.store.Add(candidate.Failed(strategy, lane, gate.VerdictError, err.Error()))
			s.reward(strategy, 0)
			return calls
		}
		out, err := s.deps.Parse(resp)
		if err != nil {
			if oracle.IsRetryable(err) && !retried {
				retried = true
				input.Feedback = append(input.Feedback, oracle.Attempt{Response: resp, Err: err.Error()})
				continue
			}
			// Unparseable output is a generation error, not a structural
			// validation failure.
			s.store.Add(candidate.Failed(strategy, lane, gate.VerdictError, err.Error()))
			s.reward(strategy, 0)
			return calls
		}

		patch := candidate.New(strategy, lane, relevance(round, retried), out)
		verdict, verr := s.deps.Gate.Validate(ctx, original, out)
		if verr != nil {
			if gate.IsStructuralFail(verr) && !retried {
				retried = true
				input.Feedback = append(input.Feedback, oracle.Attempt{Response: resp, Err: verr.Error()})
				continue
			}
			s.store.Add(patch.WithVerdict(verdict, verr.Error()))
			s.reward(strategy, 0)
			return calls
		}
		patch = patch.WithVerdict(verdict, "")

		candMs, err := s.deps.Timing.Measure(ctx, out)
		if err != nil {
			// Measurement faults exclude the candidate from winner
			// selection without branding it incorrect.
			patch.ApplyError = fmt.Sprintf("measurement: %v", err)
			s.store.Add(patch)
			s.reward(strategy, 0)
			return calls
		}
		if candMs <= 0 {
			patch.ApplyError = "measurement: non-positive latency"
			s.store.Add(patch)
			s.reward(strategy, 0)
			return calls
		}
		speedup := baselineMs / candMs
		status := candidate.Classify(speedup, s.cfg.WinThreshold, s.cfg.NeutralFloor)
		patch, err = patch.WithBenchmark(speedup, status)
		if err != nil {
			s.store.Add(patch)
			return calls
		}
		s.store.Add(patch)
		if status == candidate.StatusWin {
			s.reward(strategy, 1)
		} else {
			s.reward(strategy, 0)
		}
		return calls
	}
}

// pickStrategies assigns one strategy per lane. The first lanes cover every
// configured strategy once; without the bandit, surplus lanes redraw with
// weights favoring earlier-listed strategies (config order is a preference),
// and with it, picks lean toward strategies that produced wins.
func (s *Session) pickStrategies(lanes int) []string {
	out := make([]string, lanes)
	n := len(s.cfg.Strategies)
	if n == 0 {
		for i := range out {
			out[i] = "general"
		}
		return out
	}
	if s.bandit == nil {
		weights := make([]int, n)
		for i := range weights {
			weights[i] = n - i
		}
		for i := range out {
			if i < n {
				out[i] = s.cfg.Strategies[i]
				continue
			}
			out[i] = s.cfg.Strategies[util.PickWeighted(s.deps.Rand, weights)]
		}
		return out
	}
	used := make([]bool, n)
	for i := range out {
		arm := s.bandit.Pick(s.deps.Rand, availableArms(used))
		out[i] = s.cfg.Strategies[arm]
		if i < n {
			used[arm] = true
		}
		if allUsed(used) {
			used = make([]bool, n)
		}
	}
	return out
}

func availableArms(used []bool) []bool {
	enabled := make([]bool, len(used))
	for i, u := range used {
		enabled[i] = !u
	}
	return enabled
}

func allUsed(used []bool) bool {
	for _, u := range used {
		if !u {
			return false
		}
	}
	return true
}

func (s *Session) reward(strategy string, reward float64) {
	if s.bandit == nil {
		return
	}
	for i, name := range s.cfg.Strategies {
		if name == strategy {
			s.bandit.Update(i, reward)
			return
		}
	}
}

// relevance is a weak prior on how promising the lane output is; retried
// lanes rank below clean ones at equal speedup.
func relevance(round int, retried bool) float64 {
	r := 1.0 / float64(round+1)
	if retried {
		r /= 2
	}
	return r
}

func (s *Session) lineageOf(best candidate.Patch) []string {
	lineage := []string{best.Lineage}
	seen := map[string]struct{}{best.Lineage: {}}
	for _, p := range s.store.Snapshot() {
		if !p.Benchmarked() || p.ID == best.ID {
			continue
		}
		if _, ok := seen[p.Lineage]; ok {
			continue
		}
		if p.Speedup > 1.0 {
			seen[p.Lineage] = struct{}{}
			lineage = append(lineage, p.Lineage)
		}
	}
	return lineage
}
