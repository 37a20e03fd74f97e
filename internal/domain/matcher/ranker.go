package matcher

import (
	"sort"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

const (
	// DefaultTopK is the number of candidates handed to the decision selector.
	DefaultTopK = 5
	// DefaultMinScore is the floor used by the bulk re-run.
	DefaultMinScore = 0.3
)

// FindCandidates scores ledger against every unclaimed bank transaction and
// returns the topK best, highest score first. Ties keep the pool's order.
func (m *Matcher) FindCandidates(ledger txn.Transaction, pool []txn.Transaction, claimed txn.IDSet, topK int) []MatchCandidate {
	if topK <= 0 {
		return nil
	}

	candidates := make([]MatchCandidate, 0, len(pool))
	for _, bank := range pool {
		if claimed.Has(bank.ID) {
			continue
		}
		candidates = append(candidates, m.Score(ledger, bank))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// FindAllCandidates returns the best candidate at or above minScore for each
// ledger transaction that has one, highest score first.
// The claimed set is not updated between ledgers, so two ledgers may share a
// best counterpart.
func (m *Matcher) FindAllCandidates(ledgers, pool []txn.Transaction, claimed txn.IDSet, minScore float64) []MatchCandidate {
	var out []MatchCandidate
	for _, l := range ledgers {
		best := m.FindCandidates(l, pool, claimed, 1)
		if len(best) == 0 || best[0].Score < minScore {
			continue
		}
		out = append(out, best[0])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
