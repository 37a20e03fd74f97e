// Package session holds the shared reconciliation state: the transaction
// pools, the batch run bookkeeping and the reviewer's queue and decisions.
//
// Every field is guarded by one mutex. The batch run goroutine and the
// request handlers both go through the exported methods, so each
// read-decide-write sequence happens inside a single critical section.
// A paused run blocks on a condition variable tied to the same mutex.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// Session is one reconciliation workspace.
type Session struct {
	mu   sync.Mutex
	cond *sync.Cond

	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	ledger []txn.Transaction
	bank   []txn.Transaction

	// Survive SetTransactions.
	excludedLedger txn.IDSet
	excludedBank   txn.IDSet
	excluded       []review.Exclusion

	// Ids held by confirmed matches.
	claimedLedger txn.IDSet
	claimedBank   txn.IDSet

	// Bank ids proposed by a finished run or re-run and still pending review.
	reservedBank txn.IDSet

	queue         []matcher.MatchResult
	cursor        int
	confirmed     []review.Decision
	rejected      []review.Decision
	skipped       []review.Decision
	excludedPairs map[matcher.Pair]struct{}

	audit  []review.AuditEntry
	config matcher.Config
	run    run
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator overrides how run and audit ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// New creates an empty session.
func New(logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
		excludedLedger: txn.NewIDSet(),
		excludedBank:   txn.NewIDSet(),
		config:         matcher.DefaultConfig(),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// resetLocked clears everything tied to the current transaction pools.
func (s *Session) resetLocked() {
	s.claimedLedger = txn.NewIDSet()
	s.claimedBank = txn.NewIDSet()
	s.reservedBank = txn.NewIDSet()
	s.queue = nil
	s.cursor = 0
	s.confirmed = nil
	s.rejected = nil
	s.skipped = nil
	s.excludedPairs = make(map[matcher.Pair]struct{})
	s.run = run{status: StatusIdle}
}

// SetTransactions replaces both pools and resets review and run state.
// Exclusions and the audit trail are kept.
func (s *Session) SetTransactions(ledger, bank []txn.Transaction) error {
	if err := txn.ValidateAll(ledger); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := txn.ValidateAll(bank); err != nil {
		return fmt.Errorf("bank: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.status.Active() {
		return ErrRunActive
	}

	s.ledger = stamp(ledger, txn.Ledger)
	s.bank = stamp(bank, txn.Bank)
	s.resetLocked()

	s.logger.Info("transactions loaded",
		"ledger", len(s.ledger),
		"bank", len(s.bank),
		"excluded_ledger", s.excludedLedger.Len(),
		"excluded_bank", s.excludedBank.Len())
	return nil
}

func stamp(in []txn.Transaction, source txn.Source) []txn.Transaction {
	out := make([]txn.Transaction, len(in))
	copy(out, in)
	for i := range out {
		out[i].Source = source
	}
	return out
}

// Config returns the matching config most recently used by a run or re-run.
func (s *Session) Config() matcher.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Snapshot is a consistent copy of the whole session, taken under one lock.
type Snapshot struct {
	Progress        Progress              `json:"progress"`
	Stats           review.Stats          `json:"stats"`
	Config          matcher.Config        `json:"config"`
	Cursor          int                   `json:"cursor"`
	Pending         []PendingItem         `json:"pending"`
	Confirmed       []review.Decision     `json:"confirmed"`
	Rejected        []review.Decision     `json:"rejected"`
	Skipped         []review.Decision     `json:"skipped"`
	Excluded        []review.Exclusion    `json:"excluded"`
	UnmatchedLedger []txn.Transaction     `json:"unmatched_ledger"`
	UnmatchedBank   []txn.Transaction     `json:"unmatched_bank"`
	RunUnmatched    []matcher.MatchResult `json:"run_unmatched"`
	ClaimedLedger   txn.IDSet             `json:"claimed_ledger"`
	ClaimedBank     txn.IDSet             `json:"claimed_bank"`
	ExcludedLedger  txn.IDSet             `json:"excluded_ledger"`
	ExcludedBank    txn.IDSet             `json:"excluded_bank"`
	Audit           []review.AuditEntry   `json:"audit"`
}

// Snapshot copies the full session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pendingLocked()
	return Snapshot{
		Progress:        s.progressLocked(),
		Stats:           s.statsLocked(len(pending)),
		Config:          s.config,
		Cursor:          s.cursor,
		Pending:         pending,
		Confirmed:       cloneSlice(s.confirmed),
		Rejected:        cloneSlice(s.rejected),
		Skipped:         cloneSlice(s.skipped),
		Excluded:        cloneSlice(s.excluded),
		UnmatchedLedger: unmatched(s.ledger, s.claimedLedger, s.excludedLedger),
		UnmatchedBank:   unmatched(s.bank, s.claimedBank, s.excludedBank),
		RunUnmatched:    cloneSlice(s.run.unmatched),
		ClaimedLedger:   s.claimedLedger.Clone(),
		ClaimedBank:     s.claimedBank.Clone(),
		ExcludedLedger:  s.excludedLedger.Clone(),
		ExcludedBank:    s.excludedBank.Clone(),
		Audit:           cloneSlice(s.audit),
	}
}

// Stats summarizes review progress.
func (s *Session) Stats() review.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked(len(s.pendingLocked()))
}

func (s *Session) statsLocked(pending int) review.Stats {
	return review.Stats{
		Confirmed:   len(s.confirmed),
		Rejected:    len(s.rejected),
		Excluded:    len(s.excluded),
		Skipped:     len(s.skipped),
		Pending:     pending,
		TotalLedger: len(s.ledger),
		TotalBank:   len(s.bank),
	}
}

// Audit returns a copy of the audit trail, oldest first.
func (s *Session) Audit() []review.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.audit)
}

// ClaimedIDs returns copies of the claimed ledger and bank id sets.
func (s *Session) ClaimedIDs() (ledger, bank txn.IDSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimedLedger.Clone(), s.claimedBank.Clone()
}

// unmatched lists transactions neither claimed nor excluded, in pool order.
func unmatched(pool []txn.Transaction, claimed, excluded txn.IDSet) []txn.Transaction {
	out := make([]txn.Transaction, 0, len(pool))
	for _, t := range pool {
		if claimed.Has(t.ID) || excluded.Has(t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// appendAuditLocked records action against result under the active config.
func (s *Session) appendAuditLocked(action review.Action, result matcher.MatchResult, notes string) {
	entry := review.NewAuditEntry(s.newID(), s.now(), action, result, notes, s.config)
	s.audit = append(s.audit, entry)
}
