package session

import (
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

const rerunExplanation = "Re-run match found by heuristics"

// Rerun scans the unclaimed, non-excluded transactions for the single best
// counterpart of each ledger transaction and appends every pairing scoring at
// least minScore to the review queue. Ledger transactions already pending
// review are skipped and each bank transaction is proposed at most once.
// It returns the number of pairings added.
func (s *Session) Rerun(cfg matcher.Config, minScore float64) (int, error) {
	m, err := matcher.NewMatcher(cfg)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.status.Active() {
		return 0, ErrRunActive
	}

	pendingLedger := txn.NewIDSet()
	for _, item := range s.pendingLocked() {
		pendingLedger.Add(item.Result.Ledger.ID)
	}

	var ledgers []txn.Transaction
	for _, l := range unmatched(s.ledger, s.claimedLedger, s.excludedLedger) {
		if !pendingLedger.Has(l.ID) {
			ledgers = append(ledgers, l)
		}
	}

	blocked := s.claimedBank.Clone()
	blocked.Merge(s.excludedBank)
	blocked.Merge(s.reservedBank)
	pool := unmatched(s.bank, blocked, nil)

	s.config = cfg
	added := 0
	for _, c := range m.FindAllCandidates(ledgers, pool, nil, minScore) {
		if s.reservedBank.Has(c.Bank.ID) {
			continue
		}
		bank := c.Bank
		s.queue = append(s.queue, matcher.MatchResult{
			Ledger:          c.Ledger,
			Bank:            &bank,
			Confidence:      c.Score,
			HeuristicScore:  c.Score,
			Explanation:     rerunExplanation,
			ComponentScores: c.ComponentScores,
			Candidates:      []matcher.MatchCandidate{c},
		})
		s.reservedBank.Add(bank.ID)
		added++
	}

	s.logger.Info("re-run completed",
		"ledger_scanned", len(ledgers),
		"bank_pool", len(pool),
		"added", added,
		"min_score", minScore)
	return added, nil
}
