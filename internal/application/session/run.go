package session

import (
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// RunStatus is the lifecycle state of a batch matching run.
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusPaused  RunStatus = "paused"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
	StatusStopped RunStatus = "stopped"
)

// Active reports whether a run in this state still owns the session.
func (s RunStatus) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

type run struct {
	id          string
	status      RunStatus
	processed   int
	total       int
	matched     int
	err         string
	startedAt   time.Time
	completedAt time.Time
	config      matcher.Config
	unmatched   []matcher.MatchResult
	claimedBank txn.IDSet
}

// Progress is a point-in-time view of the current run.
type Progress struct {
	RunID       string         `json:"run_id,omitempty"`
	Status      RunStatus      `json:"status"`
	Processed   int            `json:"processed"`
	Total       int            `json:"total"`
	Matched     int            `json:"matched"`
	Unmatched   int            `json:"unmatched"`
	Error       string         `json:"error,omitempty"`
	Config      matcher.Config `json:"config"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Percent is processed/total as a percentage. An empty run is complete.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		if p.Status == StatusDone {
			return 100
		}
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// Elapsed is the run's wall time so far, or its total once finished.
func (p Progress) Elapsed(now time.Time) time.Duration {
	if p.StartedAt == nil {
		return 0
	}
	if p.CompletedAt != nil {
		return p.CompletedAt.Sub(*p.StartedAt)
	}
	return now.Sub(*p.StartedAt)
}

// Plan is the snapshot a run works through.
type Plan struct {
	RunID  string
	Config matcher.Config
	Ledger []txn.Transaction
	Bank   []txn.Transaction
}

// Progress returns the current run's progress.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	r := s.run
	p := Progress{
		RunID:     r.id,
		Status:    r.status,
		Processed: r.processed,
		Total:     r.total,
		Matched:   r.matched,
		Unmatched: len(r.unmatched),
		Error:     r.err,
		Config:    r.config,
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		p.StartedAt = &started
	}
	if !r.completedAt.IsZero() {
		completed := r.completedAt
		p.CompletedAt = &completed
	}
	return p
}

// BeginRun snapshots the unclaimed, non-excluded transactions and marks a new
// run as Running. If a run is already active it returns that run's progress
// and false.
func (s *Session) BeginRun(cfg matcher.Config) (Plan, Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.status.Active() {
		return Plan{}, s.progressLocked(), false
	}

	plan := Plan{
		RunID:  s.newID(),
		Config: cfg,
		Ledger: unmatched(s.ledger, s.claimedLedger, s.excludedLedger),
		Bank:   unmatched(s.bank, s.claimedBank, s.excludedBank),
	}

	s.config = cfg
	s.queue = nil
	s.cursor = 0
	s.reservedBank = txn.NewIDSet()
	s.run = run{
		id:          plan.RunID,
		status:      StatusRunning,
		total:       len(plan.Ledger),
		startedAt:   s.now(),
		config:      cfg,
		claimedBank: txn.NewIDSet(),
	}

	s.logger.Info("matching run started",
		"run_id", plan.RunID,
		"ledger", len(plan.Ledger),
		"bank", len(plan.Bank))
	return plan, s.progressLocked(), true
}

// Checkpoint blocks while the run is paused and reports whether runID should
// keep working. It returns false once the run is stopped, finished or
// replaced by a newer run.
func (s *Session) Checkpoint(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.run.id == runID && s.run.status == StatusPaused {
		s.cond.Wait()
	}
	return s.run.id == runID && s.run.status == StatusRunning
}

// Blocked returns the bank ids a run must not propose for ledgerID, and
// whether ledgerID itself has been excluded since the run started.
func (s *Session) Blocked(runID, ledgerID string) (txn.IDSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked := s.claimedBank.Clone()
	blocked.Merge(s.excludedBank)
	if s.run.id == runID {
		blocked.Merge(s.run.claimedBank)
	}
	return blocked, s.excludedLedger.Has(ledgerID) || s.claimedLedger.Has(ledgerID)
}

func (s *Session) ownsLocked(runID string) bool {
	return s.run.id == runID && s.run.status.Active()
}

// RecordMatched appends a selected pairing to the review queue and claims its
// bank id for this run. A bank id taken since ranking demotes the result to
// unmatched. It returns false if runID no longer owns the session.
func (s *Session) RecordMatched(runID string, result matcher.MatchResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(runID) {
		return false
	}

	bankID := result.BankID()
	if s.claimedBank.Has(bankID) || s.excludedBank.Has(bankID) || s.run.claimedBank.Has(bankID) {
		result.Bank = nil
		result.Confidence = 0
		result.Explanation = "Selected counterpart was claimed during the run"
		s.run.unmatched = append(s.run.unmatched, result)
	} else {
		s.run.claimedBank.Add(bankID)
		s.run.matched++
		s.queue = append(s.queue, result)
	}
	s.run.processed++
	return true
}

// RecordUnmatched appends a result with no selected counterpart.
func (s *Session) RecordUnmatched(runID string, result matcher.MatchResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(runID) {
		return false
	}
	result.Bank = nil
	s.run.unmatched = append(s.run.unmatched, result)
	s.run.processed++
	return true
}

// RecordSkipped counts a ledger transaction that was excluded or claimed
// after the run began.
func (s *Session) RecordSkipped(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(runID) {
		return false
	}
	s.run.processed++
	return true
}

// FinishRun marks runID Done and reserves its still-pending bank ids. It
// blocks while the run is paused.
func (s *Session) FinishRun(runID string) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A pause that lands after the last record holds completion until resume.
	for s.run.id == runID && s.run.status == StatusPaused {
		s.cond.Wait()
	}
	if s.run.id != runID || s.run.status != StatusRunning {
		return s.progressLocked(), false
	}

	s.reservedBank.Merge(s.run.claimedBank)
	s.pruneReservationsLocked()
	s.run.status = StatusDone
	s.run.completedAt = s.now()

	p := s.progressLocked()
	s.logger.Info("matching run completed",
		"run_id", runID,
		"processed", p.Processed,
		"matched", p.Matched,
		"unmatched", p.Unmatched)
	return p, true
}

// FailRun marks runID Failed, keeping whatever it already recorded.
func (s *Session) FailRun(runID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.id != runID || !s.run.status.Active() {
		return
	}
	s.reservedBank.Merge(s.run.claimedBank)
	s.pruneReservationsLocked()
	s.run.status = StatusFailed
	s.run.err = err.Error()
	s.run.completedAt = s.now()
	s.cond.Broadcast()

	s.logger.Error("matching run failed", "run_id", runID, "error", err)
}

// Pause suspends a running run at its next checkpoint.
func (s *Session) Pause() (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.status != StatusRunning {
		return s.progressLocked(), ErrRunNotRunning
	}
	s.run.status = StatusPaused
	s.logger.Info("matching run paused", "run_id", s.run.id, "processed", s.run.processed)
	return s.progressLocked(), nil
}

// Resume continues a paused run. It is a no-op otherwise.
func (s *Session) Resume() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.status == StatusPaused {
		s.run.status = StatusRunning
		s.cond.Broadcast()
		s.logger.Info("matching run resumed", "run_id", s.run.id)
	}
	return s.progressLocked()
}

// Stop cancels an active run. Results already recorded stay.
func (s *Session) Stop() (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.run.status.Active() {
		return s.progressLocked(), ErrRunNotRunning
	}
	s.reservedBank.Merge(s.run.claimedBank)
	s.pruneReservationsLocked()
	s.run.status = StatusStopped
	s.run.completedAt = s.now()
	s.cond.Broadcast()
	s.logger.Info("matching run stopped", "run_id", s.run.id, "processed", s.run.processed)
	return s.progressLocked(), nil
}

// pruneReservationsLocked drops reserved bank ids that no longer back a
// pending queue entry.
func (s *Session) pruneReservationsLocked() {
	live := txn.NewIDSet()
	for _, item := range s.pendingLocked() {
		if id := item.Result.BankID(); id != "" {
			live.Add(id)
		}
	}
	for id := range s.reservedBank {
		if !live.Has(id) {
			s.reservedBank.Remove(id)
		}
	}
}
