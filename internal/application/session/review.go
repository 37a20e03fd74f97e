package session

import (
	"fmt"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
)

// PendingItem is a queue entry awaiting a decision, with its queue index.
type PendingItem struct {
	Index  int                 `json:"index"`
	Result matcher.MatchResult `json:"result"`
}

// Cursor returns the review cursor and the queue length.
func (s *Session) Cursor() (cursor, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, len(s.queue)
}

// Seek moves the review cursor to index.
func (s *Session) Seek(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.queue) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, index, len(s.queue))
	}
	s.cursor = index
	return nil
}

// Next returns the result at the cursor. ok is false once the cursor has
// reached the end of the queue.
func (s *Session) Next() (result matcher.MatchResult, index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor >= len(s.queue) {
		return matcher.MatchResult{}, s.cursor, false
	}
	return s.queue[s.cursor], s.cursor, true
}

// Act applies a reviewer decision to the result at the cursor and advances
// the cursor. Nothing changes when an error is returned.
func (s *Session) Act(action review.Action, notes string) (matcher.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !action.Valid() {
		return matcher.MatchResult{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if s.cursor >= len(s.queue) {
		return matcher.MatchResult{}, ErrNothingToReview
	}

	result := s.queue[s.cursor]
	if where := s.decidedLocked(result.Pair()); where != "" {
		return matcher.MatchResult{}, fmt.Errorf("%w: %s/%s already %s", ErrConflict, result.Ledger.ID, result.BankID(), where)
	}
	needsBank := action == review.ActionMatch || action == review.ActionExcludeBank || action == review.ActionExcludeBoth
	if needsBank && result.Bank == nil {
		return matcher.MatchResult{}, fmt.Errorf("%w: ledger %s", ErrNoCounterpart, result.Ledger.ID)
	}
	if action == review.ActionMatch {
		if s.claimedLedger.Has(result.Ledger.ID) {
			return matcher.MatchResult{}, fmt.Errorf("%w: ledger %s", ErrConflict, result.Ledger.ID)
		}
		if s.claimedBank.Has(result.Bank.ID) {
			return matcher.MatchResult{}, fmt.Errorf("%w: bank %s", ErrConflict, result.Bank.ID)
		}
	}

	s.appendAuditLocked(action, result, notes)

	// A skipped pairing is decided again rather than recorded twice.
	if idx := indexOfPair(s.skipped, result.Pair()); idx >= 0 {
		s.skipped = removeAt(s.skipped, idx)
	}

	now := s.now()
	decision := review.Decision{Result: result, Notes: notes, DecidedAt: now}
	switch action {
	case review.ActionMatch:
		s.confirmed = append(s.confirmed, decision)
		s.claimedLedger.Add(result.Ledger.ID)
		s.claimedBank.Add(result.Bank.ID)
	case review.ActionReject:
		s.rejected = append(s.rejected, decision)
	case review.ActionSkip:
		s.skipped = append(s.skipped, decision)
	case review.ActionExcludeLedger:
		s.excludeLocked(result, action, notes, true, false)
	case review.ActionExcludeBank:
		s.excludeLocked(result, action, notes, false, true)
	case review.ActionExcludeBoth:
		s.excludeLocked(result, action, notes, true, true)
	}

	if id := result.BankID(); id != "" {
		s.reservedBank.Remove(id)
	}
	s.cursor++

	s.logger.Info("review action applied",
		"action", action,
		"ledger_id", result.Ledger.ID,
		"bank_id", result.BankID(),
		"cursor", s.cursor)
	return result, nil
}

// decidedLocked names the final state pair is in, or "" if it is still open.
// Skipped pairings stay open.
func (s *Session) decidedLocked(pair matcher.Pair) string {
	switch {
	case indexOfPair(s.confirmed, pair) >= 0:
		return "confirmed"
	case indexOfPair(s.rejected, pair) >= 0:
		return "rejected"
	}
	if _, ok := s.excludedPairs[pair]; ok {
		return "excluded"
	}
	return ""
}

func (s *Session) excludeLocked(result matcher.MatchResult, action review.Action, notes string, ledger, bank bool) {
	now := s.now()
	if ledger {
		s.excludedLedger.Add(result.Ledger.ID)
		s.excluded = append(s.excluded, review.Exclusion{
			Transaction: result.Ledger,
			Action:      action,
			Notes:       notes,
			ExcludedAt:  now,
		})
	}
	if bank {
		s.excludedBank.Add(result.Bank.ID)
		s.excluded = append(s.excluded, review.Exclusion{
			Transaction: *result.Bank,
			Action:      action,
			Notes:       notes,
			ExcludedAt:  now,
		})
	}
	s.excludedPairs[result.Pair()] = struct{}{}
}

// RejectApproved moves a confirmed pairing to rejected and releases its ids.
func (s *Session) RejectApproved(ledgerID, bankID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := matcher.Pair{LedgerID: ledgerID, BankID: bankID}
	idx := indexOfPair(s.confirmed, pair)
	if idx < 0 {
		return fmt.Errorf("%w: %s/%s in confirmed", ErrNotFound, ledgerID, bankID)
	}

	d := s.confirmed[idx]
	s.appendAuditLocked(review.ActionReject, d.Result, "")

	s.confirmed = removeAt(s.confirmed, idx)
	d.DecidedAt = s.now()
	s.rejected = append(s.rejected, d)
	s.claimedLedger.Remove(ledgerID)
	s.claimedBank.Remove(bankID)

	s.logger.Info("confirmed match rejected", "ledger_id", ledgerID, "bank_id", bankID)
	return nil
}

// RestoreRejected puts a rejected pairing back into the queue at the cursor.
func (s *Session) RestoreRejected(ledgerID, bankID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.findRejectedLocked(ledgerID, bankID)
	if err != nil {
		return err
	}

	d := s.rejected[idx]
	s.appendAuditLocked(review.ActionRestore, d.Result, "")
	s.rejected = removeAt(s.rejected, idx)

	// Move an older copy of the pairing rather than queueing it twice.
	pair := d.Pair()
	for i, r := range s.queue {
		if r.Pair() == pair {
			s.queue = removeAt(s.queue, i)
			if i < s.cursor {
				s.cursor--
			}
			break
		}
	}
	s.queue = insertAt(s.queue, s.cursor, d.Result)
	if bankID != "" {
		s.reservedBank.Add(bankID)
	}

	s.logger.Info("rejected match restored", "ledger_id", ledgerID, "bank_id", bankID, "cursor", s.cursor)
	return nil
}

// ApproveRejected confirms a rejected pairing directly.
func (s *Session) ApproveRejected(ledgerID, bankID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bankID == "" {
		return fmt.Errorf("%w: ledger %s", ErrNoCounterpart, ledgerID)
	}
	idx, err := s.findRejectedLocked(ledgerID, bankID)
	if err != nil {
		return err
	}

	d := s.rejected[idx]
	s.appendAuditLocked(review.ActionApprove, d.Result, "")

	s.rejected = removeAt(s.rejected, idx)
	d.DecidedAt = s.now()
	s.confirmed = append(s.confirmed, d)
	s.claimedLedger.Add(ledgerID)
	s.claimedBank.Add(bankID)
	s.reservedBank.Remove(bankID)

	s.logger.Info("rejected match approved", "ledger_id", ledgerID, "bank_id", bankID)
	return nil
}

// findRejectedLocked checks claims first, then locates the exact pairing.
func (s *Session) findRejectedLocked(ledgerID, bankID string) (int, error) {
	if s.claimedLedger.Has(ledgerID) {
		return -1, fmt.Errorf("%w: ledger %s", ErrConflict, ledgerID)
	}
	if bankID != "" && s.claimedBank.Has(bankID) {
		return -1, fmt.Errorf("%w: bank %s", ErrConflict, bankID)
	}
	idx := indexOfPair(s.rejected, matcher.Pair{LedgerID: ledgerID, BankID: bankID})
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s/%s in rejected", ErrNotFound, ledgerID, bankID)
	}
	return idx, nil
}

// PendingSnapshot lists queue entries whose exact pairing has not been
// decided, in queue order.
func (s *Session) PendingSnapshot() []PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Session) pendingLocked() []PendingItem {
	decided := make(map[matcher.Pair]struct{}, len(s.confirmed)+len(s.rejected)+len(s.skipped)+len(s.excludedPairs))
	for _, set := range [][]review.Decision{s.confirmed, s.rejected, s.skipped} {
		for _, d := range set {
			decided[d.Pair()] = struct{}{}
		}
	}
	for p := range s.excludedPairs {
		decided[p] = struct{}{}
	}

	out := make([]PendingItem, 0, len(s.queue))
	for i, r := range s.queue {
		if _, ok := decided[r.Pair()]; ok {
			continue
		}
		out = append(out, PendingItem{Index: i, Result: r})
	}
	return out
}

func indexOfPair(decisions []review.Decision, pair matcher.Pair) int {
	for i, d := range decisions {
		if d.Pair() == pair {
			return i
		}
	}
	return -1
}

func removeAt[T any](in []T, i int) []T {
	out := make([]T, 0, len(in)-1)
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}

func insertAt[T any](in []T, i int, v T) []T {
	out := make([]T, 0, len(in)+1)
	out = append(out, in[:i]...)
	out = append(out, v)
	return append(out, in[i:]...)
}
