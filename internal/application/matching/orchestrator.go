// Package matching runs batch matching over a session in the background.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

const noCandidatesExplanation = "No candidates found by heuristics"

// Options tunes an Orchestrator.
type Options struct {
	// TopK is how many ranked candidates reach the selector (default 5).
	TopK int
	// OnProgress, if set, is called after every processed ledger transaction.
	OnProgress func(session.Progress)
}

// Orchestrator runs batch matching over a session.
type Orchestrator struct {
	session  *session.Session
	selector *selector.Selector
	runs     storage.RunRepository
	logger   *slog.Logger
	opts     Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator. runs may be nil to skip archiving.
func NewOrchestrator(
	sess *session.Session,
	sel *selector.Selector,
	runs storage.RunRepository,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = matcher.DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		session:  sess,
		selector: sel,
		runs:     runs,
		logger:   logger,
		opts:     opts,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start begins a run with cfg. If a run is already active it returns that
// run's progress and false instead of starting another.
// The run is detached from the caller's context; use Stop to cancel it.
func (o *Orchestrator) Start(cfg matcher.Config) (session.Progress, bool, error) {
	m, err := matcher.NewMatcher(cfg)
	if err != nil {
		return o.session.Progress(), false, err
	}

	plan, progress, started := o.session.BeginRun(cfg)
	if !started {
		return progress, false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[plan.RunID] = cancel
	o.mu.Unlock()

	o.archive(progress)

	o.wg.Add(1)
	go o.execute(runCtx, m, plan)

	o.logger.Info("matching run launched",
		"run_id", plan.RunID,
		"total", progress.Total,
		"assisted", o.selector.Assisted(),
		"top_k", o.opts.TopK)
	return progress, true, nil
}

// Progress returns the current run's progress.
func (o *Orchestrator) Progress() session.Progress {
	return o.session.Progress()
}

// Pause suspends the running run at its next checkpoint.
func (o *Orchestrator) Pause() (session.Progress, error) {
	return o.session.Pause()
}

// Resume continues a paused run; it is a no-op otherwise.
func (o *Orchestrator) Resume() session.Progress {
	return o.session.Resume()
}

// Stop cancels the active run and aborts any in-flight decision call.
func (o *Orchestrator) Stop() (session.Progress, error) {
	p, err := o.session.Stop()
	if err != nil {
		return p, err
	}
	o.cancel(p.RunID)
	o.archive(p)
	return p, nil
}

// Wait blocks until every launched run goroutine has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops any active run and waits for its goroutine, or for ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.session.Progress().Status.Active() {
		_, _ = o.Stop()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) execute(ctx context.Context, m *matcher.Matcher, plan session.Plan) {
	defer o.wg.Done()
	defer o.cancel(plan.RunID)
	defer func() {
		if r := recover(); r != nil {
			o.session.FailRun(plan.RunID, fmt.Errorf("matching run panicked: %v", r))
			o.archive(o.session.Progress())
		}
	}()

	for _, ledger := range plan.Ledger {
		if !o.process(ctx, m, plan, ledger) {
			o.logger.Info("matching run exited early", "run_id", plan.RunID, "status", o.session.Progress().Status)
			return
		}
		o.notify()
	}

	if p, ok := o.session.FinishRun(plan.RunID); ok {
		o.archive(p)
		o.notify()
	}
}

// process handles one ledger transaction. It returns false when the run
// should stop working.
func (o *Orchestrator) process(ctx context.Context, m *matcher.Matcher, plan session.Plan, ledger txn.Transaction) bool {
	runID := plan.RunID

	// Before ranking.
	if !o.session.Checkpoint(runID) {
		return false
	}
	blocked, skip := o.session.Blocked(runID, ledger.ID)
	if skip {
		return o.session.RecordSkipped(runID)
	}

	candidates := m.FindCandidates(ledger, plan.Bank, blocked, o.opts.TopK)
	if len(candidates) == 0 {
		return o.session.RecordUnmatched(runID, matcher.MatchResult{
			Ledger:      ledger,
			Explanation: noCandidatesExplanation,
		})
	}

	// Before the selector.
	if !o.session.Checkpoint(runID) {
		return false
	}
	decision := o.selector.Select(ctx, ledger, candidates, plan.Config)

	// After the selector.
	if !o.session.Checkpoint(runID) {
		return false
	}

	if !decision.Selected() {
		top := candidates[0]
		return o.session.RecordUnmatched(runID, matcher.MatchResult{
			Ledger:          ledger,
			Confidence:      decision.Confidence,
			HeuristicScore:  top.Score,
			Explanation:     decision.Explanation,
			ComponentScores: top.ComponentScores,
			Candidates:      candidates,
		})
	}

	chosen := candidates[decision.Index]
	bank := chosen.Bank
	o.logger.Debug("match selected",
		"run_id", runID,
		"ledger_id", ledger.ID,
		"bank_id", bank.ID,
		"score", chosen.Score,
		"confidence", decision.Confidence,
		"fallback", decision.Fallback)

	return o.session.RecordMatched(runID, matcher.MatchResult{
		Ledger:          ledger,
		Bank:            &bank,
		Confidence:      decision.Confidence,
		HeuristicScore:  chosen.Score,
		Explanation:     decision.Explanation,
		ComponentScores: chosen.ComponentScores,
		Candidates:      candidates,
	})
}

func (o *Orchestrator) cancel(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.cancels[runID]; ok {
		cancel()
		delete(o.cancels, runID)
	}
}

func (o *Orchestrator) notify() {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(o.session.Progress())
	}
}

// archive records the run in the repository. Failures are logged only.
func (o *Orchestrator) archive(p session.Progress) {
	if o.runs == nil || p.RunID == "" {
		return
	}

	record := &storage.RunRecord{
		ID:          p.RunID,
		Status:      string(p.Status),
		CompletedAt: p.CompletedAt,
		Total:       p.Total,
		Processed:   p.Processed,
		Matched:     p.Matched,
		Unmatched:   p.Unmatched,
		Config:      p.Config,
		Error:       p.Error,
	}
	if p.StartedAt != nil {
		record.StartedAt = *p.StartedAt
	}

	if err := o.runs.SaveRun(context.Background(), record); err != nil {
		o.logger.Warn("failed to archive run", "run_id", p.RunID, "error", err)
	}
}
