package matcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// ErrInvalidConfig is returned when thresholds or weights are out of range.
var ErrInvalidConfig = errors.New("invalid matching config")

// Config holds the tunable matching thresholds.
type Config struct {
	VendorThreshold  float64 `json:"vendor_threshold" yaml:"vendor_threshold"`   // Default: 0.80
	AmountTolerance  float64 `json:"amount_tolerance" yaml:"amount_tolerance"`   // Default: 0.01 (1 cent)
	DateWindowDays   int     `json:"date_window_days" yaml:"date_window_days"`   // Default: 3
	RequireReference bool    `json:"require_reference" yaml:"require_reference"` // Default: false
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		VendorThreshold:  0.80,
		AmountTolerance:  0.01,
		DateWindowDays:   3,
		RequireReference: false,
	}
}

// Validate rejects thresholds outside their meaningful ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.VendorThreshold) || c.VendorThreshold < 0 || c.VendorThreshold > 1 {
		return fmt.Errorf("%w: vendor_threshold %v must be within [0, 1]", ErrInvalidConfig, c.VendorThreshold)
	}
	if math.IsNaN(c.AmountTolerance) || c.AmountTolerance < 0 {
		return fmt.Errorf("%w: amount_tolerance %v must be >= 0", ErrInvalidConfig, c.AmountTolerance)
	}
	if c.DateWindowDays < 0 {
		return fmt.Errorf("%w: date_window_days %d must be >= 0", ErrInvalidConfig, c.DateWindowDays)
	}
	return nil
}

// Weights are the per-component contributions to the composite score.
type Weights struct {
	Amount    float64 `json:"amount"`
	Date      float64 `json:"date"`
	Vendor    float64 `json:"vendor"`
	Reference float64 `json:"reference"`
	TxnType   float64 `json:"txn_type"`
}

// DefaultWeights favour amount, then vendor, then date.
func DefaultWeights() Weights {
	return Weights{
		Amount:    0.35,
		Date:      0.25,
		Vendor:    0.30,
		Reference: 0.05,
		TxnType:   0.05,
	}
}

// Validate requires every weight to be non-negative and the total to be 1.
func (w Weights) Validate() error {
	parts := []float64{w.Amount, w.Date, w.Vendor, w.Reference, w.TxnType}
	sum := 0.0
	for _, p := range parts {
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	return nil
}

// Component names used as keys in MatchCandidate.ComponentScores.
const (
	ComponentAmount    = "amount"
	ComponentDate      = "date"
	ComponentVendor    = "vendor"
	ComponentReference = "reference"
	ComponentTxnType   = "txn_type"
)

// Confidence is the coarse band derived from a composite score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// BandFor maps a composite score onto a confidence band.
func BandFor(score float64) Confidence {
	switch {
	case score >= 0.85:
		return ConfidenceHigh
	case score >= 0.65:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchCandidate is one scored ledger/bank pairing.
type MatchCandidate struct {
	Ledger          txn.Transaction    `json:"ledger_txn"`
	Bank            txn.Transaction    `json:"bank_txn"`
	Score           float64            `json:"score"`
	Confidence      Confidence         `json:"confidence"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Explanations    []string           `json:"explanations"`
}

// MatchResult is the decided outcome for one ledger transaction.
// Bank is nil when no counterpart was selected.
type MatchResult struct {
	Ledger          txn.Transaction    `json:"ledger_txn"`
	Bank            *txn.Transaction   `json:"bank_txn"`
	Confidence      float64            `json:"confidence"`
	HeuristicScore  float64            `json:"heuristic_score"`
	Explanation     string             `json:"llm_explanation"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Candidates      []MatchCandidate   `json:"candidates,omitempty"`
}

// BankID returns the counterpart id or "" when there is none.
func (r MatchResult) BankID() string {
	if r.Bank == nil {
		return ""
	}
	return r.Bank.ID
}

// Pair returns the result's (ledger, bank) identity.
func (r MatchResult) Pair() Pair {
	return Pair{LedgerID: r.Ledger.ID, BankID: r.BankID()}
}

// Pair identifies a pairing by exact ledger and bank id.
type Pair struct {
	LedgerID string `json:"ledger_id"`
	BankID   string `json:"bank_id"`
}
