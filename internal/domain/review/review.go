// Package review defines the records produced when a reviewer acts on
// proposed matches: decisions, exclusions and the audit trail.
package review

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// Action is a reviewer decision on the result at the cursor.
type Action string

const (
	ActionMatch         Action = "match"
	ActionReject        Action = "reject"
	ActionExcludeLedger Action = "exclude_ledger"
	ActionExcludeBank   Action = "exclude_bank"
	ActionExcludeBoth   Action = "exclude_both"
	ActionSkip          Action = "skip"

	// Recorded only by the reversal operations.
	ActionRestore Action = "restore"
	ActionApprove Action = "approve"
)

// Valid reports whether a is accepted on the result at the cursor.
func (a Action) Valid() bool {
	switch a {
	case ActionMatch, ActionReject, ActionExcludeLedger, ActionExcludeBank, ActionExcludeBoth, ActionSkip:
		return true
	}
	return false
}

// Excludes reports whether a adds ids to the exclusion sets.
func (a Action) Excludes() bool {
	return a == ActionExcludeLedger || a == ActionExcludeBank || a == ActionExcludeBoth
}

// Decision is a result that was confirmed, rejected or skipped.
type Decision struct {
	Result    matcher.MatchResult `json:"result"`
	Notes     string              `json:"notes,omitempty"`
	DecidedAt time.Time           `json:"decided_at"`
}

// Pair returns the decided (ledger, bank) pairing.
func (d Decision) Pair() matcher.Pair {
	return d.Result.Pair()
}

// Exclusion records a transaction taken out of future matching.
type Exclusion struct {
	Transaction txn.Transaction `json:"transaction"`
	Action      Action          `json:"action"`
	Notes       string          `json:"notes,omitempty"`
	ExcludedAt  time.Time       `json:"excluded_at"`
}

// AuditEntry is one immutable line of the audit trail.
type AuditEntry struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Action         Action             `json:"action"`
	Ledger         txn.Transaction    `json:"ledger_txn"`
	Bank           *txn.Transaction   `json:"bank_txn"`
	Confidence     float64            `json:"confidence"`
	HeuristicScore float64            `json:"heuristic_score"`
	Explanation    string             `json:"llm_explanation"`
	Notes          string             `json:"notes,omitempty"`
	MatchingConfig matcher.Config     `json:"matching_config"`
	Components     map[string]float64 `json:"component_scores,omitempty"`
}

// NewAuditEntry snapshots result under cfg.
func NewAuditEntry(id string, at time.Time, action Action, result matcher.MatchResult, notes string, cfg matcher.Config) AuditEntry {
	entry := AuditEntry{
		ID:             id,
		Timestamp:      at,
		Action:         action,
		Ledger:         result.Ledger,
		Confidence:     result.Confidence,
		HeuristicScore: result.HeuristicScore,
		Explanation:    result.Explanation,
		Notes:          notes,
		MatchingConfig: cfg,
		Components:     result.ComponentScores,
	}
	if result.Bank != nil {
		bank := *result.Bank
		entry.Bank = &bank
	}
	return entry
}

func (e AuditEntry) BankID() string {
	if e.Bank == nil {
		return ""
	}
	return e.Bank.ID
}

func (e AuditEntry) BankVendor() string {
	if e.Bank == nil {
		return ""
	}
	return e.Bank.Vendor
}

// BankAmount returns the counterpart amount, or nil without a counterpart.
func (e AuditEntry) BankAmount() *decimal.Decimal {
	if e.Bank == nil {
		return nil
	}
	amt := e.Bank.Amount
	return &amt
}

// Stats summarizes review progress.
type Stats struct {
	Confirmed   int `json:"confirmed"`
	Rejected    int `json:"rejected"`
	Excluded    int `json:"excluded"`
	Skipped     int `json:"skipped"`
	Pending     int `json:"pending"`
	TotalLedger int `json:"total_ledger"`
	TotalBank   int `json:"total_bank"`
}

// MatchRate is the share of ledger transactions confirmed, in percent.
func (s Stats) MatchRate() float64 {
	if s.TotalLedger == 0 {
		return 0
	}
	return float64(s.Confirmed) / float64(s.TotalLedger) * 100
}
