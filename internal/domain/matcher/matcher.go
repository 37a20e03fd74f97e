// Package matcher scores ledger/bank transaction pairs and ranks candidate
// counterparts for a ledger transaction.
//
// The composite score is a weighted sum of five component scores:
//   - Amount: exact match scores 1, within tolerance decays toward 0.9,
//     beyond tolerance decays exponentially
//   - Date: same day scores 1, decays to 0.5 at the window edge
//   - Vendor: token-set similarity of normalized vendor names
//   - Reference: neutral 0.5 when neither side has one
//   - Type: 1 when directions agree, 0 otherwise
//
// Opposite directions, or a required reference that does not match, veto the
// pair: the composite is exactly 0.1. Otherwise vendor similarity below the
// configured threshold halves the weighted sum.
//
// Example usage:
//
//	m, err := matcher.NewMatcher(matcher.DefaultConfig())
//	candidates := m.FindCandidates(ledgerTxn, bankTxns, claimedIDs, matcher.DefaultTopK)
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// Matcher scores transaction pairs under a fixed config and weight set.
type Matcher struct {
	config  Config
	weights Weights
	tol     decimal.Decimal
}

// NewMatcher creates a matcher with the default weights.
func NewMatcher(config Config) (*Matcher, error) {
	return NewMatcherWithWeights(config, DefaultWeights())
}

// NewMatcherWithWeights creates a matcher with custom weights.
func NewMatcherWithWeights(config Config, weights Weights) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{
		config:  config,
		weights: weights,
		tol:     decimal.NewFromFloat(config.AmountTolerance),
	}, nil
}

// Config returns the thresholds this matcher scores with.
func (m *Matcher) Config() Config {
	return m.config
}

// AmountScore compares two non-negative amounts.
func (m *Matcher) AmountScore(a, b decimal.Decimal) (float64, string) {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return 1.0, fmt.Sprintf("Exact amount match ($%s)", a.StringFixed(2))
	}
	if m.tol.IsPositive() && diff.LessThanOrEqual(m.tol) {
		frac := diff.Div(m.tol).InexactFloat64()
		return 1.0 - frac*0.1, fmt.Sprintf("Amount difference $%s within tolerance", diff.StringFixed(2))
	}
	score := math.Max(0, math.Exp(-diff.InexactFloat64()/10))
	return score, fmt.Sprintf("Amount mismatch: $%s vs $%s (diff: $%s)", a.StringFixed(2), b.StringFixed(2), diff.StringFixed(2))
}

// DateScore compares two calendar dates against the date window.
func (m *Matcher) DateScore(a, b txn.Date) (float64, string) {
	days := txn.DaysBetween(a, b)
	window := m.config.DateWindowDays
	switch {
	case days == 0:
		return 1.0, "Same date"
	case days <= window:
		return 1.0 - (float64(days)/float64(window))*0.5, fmt.Sprintf("Date within %d days (%d days apart)", window, days)
	default:
		return math.Max(0, 0.3-float64(days-window)*0.1), fmt.Sprintf("Date outside window (%d days apart)", days)
	}
}

// VendorScore compares normalized vendor names.
func (m *Matcher) VendorScore(a, b string) (float64, string) {
	score := tokenSetRatio(normalizeVendor(a), normalizeVendor(b))
	if score >= 1.0 {
		return 1.0, fmt.Sprintf("Vendor match: '%s'", a)
	}
	return score, fmt.Sprintf("Vendor similarity: %.0f%% ('%s' vs '%s')", score*100, a, b)
}

// ReferenceScore compares references. Missing references score below a
// match but above a clear mismatch.
func (m *Matcher) ReferenceScore(a, b string) (float64, string) {
	ua := strings.ToUpper(strings.TrimSpace(a))
	ub := strings.ToUpper(strings.TrimSpace(b))
	switch {
	case ua == "" && ub == "":
		return 0.5, "No references to compare"
	case ua == "" || ub == "":
		return 0.3, "Reference missing on one side"
	case ua == ub:
		return 1.0, fmt.Sprintf("Reference match: '%s'", a)
	}
	if score := ratio(ua, ub); score > 0.8 {
		return score, fmt.Sprintf("Reference similarity: %.0f%%", score*100)
	}
	return 0.0, fmt.Sprintf("Reference mismatch: '%s' vs '%s'", a, b)
}

// TxnTypeScore is 1 when both sides move money in the same direction.
func (m *Matcher) TxnTypeScore(a, b txn.Type) (float64, string) {
	if a == b {
		return 1.0, fmt.Sprintf("Transaction type match: %s", a)
	}
	return 0.0, fmt.Sprintf("Transaction type mismatch: %s vs %s", a, b)
}

const vetoScore = 0.1

// Score produces the full candidate for a ledger/bank pair.
func (m *Matcher) Score(ledger, bank txn.Transaction) MatchCandidate {
	amount, amountExp := m.AmountScore(ledger.Amount, bank.Amount)
	date, dateExp := m.DateScore(ledger.Date, bank.Date)
	vendor, vendorExp := m.VendorScore(ledger.Vendor, bank.Vendor)
	ref, refExp := m.ReferenceScore(ledger.Reference, bank.Reference)
	typ, typExp := m.TxnTypeScore(ledger.Type, bank.Type)

	components := map[string]float64{
		ComponentAmount:    amount,
		ComponentDate:      date,
		ComponentVendor:    vendor,
		ComponentReference: ref,
		ComponentTxnType:   typ,
	}
	explanations := []string{typExp, amountExp, dateExp, vendorExp}
	if ledger.HasReference() || bank.HasReference() {
		explanations = append(explanations, refExp)
	}

	var composite float64
	switch {
	case typ == 0:
		composite = vetoScore
		explanations = append(explanations, "Cannot match: different transaction types")
	case m.config.RequireReference && ref < 0.8:
		composite = vetoScore
		explanations = append(explanations, "Reference required but not matched")
	default:
		composite = m.weights.Amount*amount +
			m.weights.Date*date +
			m.weights.Vendor*vendor +
			m.weights.Reference*ref +
			m.weights.TxnType*typ
		if vendor < m.config.VendorThreshold {
			composite *= 0.5
			explanations = append(explanations, fmt.Sprintf("Vendor similarity below threshold (%.0f%%)", m.config.VendorThreshold*100))
		}
	}

	composite = clamp01(composite)
	return MatchCandidate{
		Ledger:          ledger,
		Bank:            bank,
		Score:           composite,
		Confidence:      BandFor(composite),
		ComponentScores: components,
		Explanations:    explanations,
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
