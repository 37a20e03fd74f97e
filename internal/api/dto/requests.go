package dto

import (
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// SetTransactionsRequest replaces both transaction pools.
type SetTransactionsRequest struct {
	Ledger []txn.Transaction `json:"ledger"`
	Bank   []txn.Transaction `json:"bank"`
}

// RunRequest starts a matching run. Fields missing from Config keep their defaults.
type RunRequest struct {
	Config matcher.Config `json:"config"`
}

// SeekRequest moves the review cursor.
type SeekRequest struct {
	Index *int `json:"index"`
}

// ActionRequest applies a review action to the result at the cursor.
type ActionRequest struct {
	Action review.Action `json:"action"`
	Notes  string        `json:"notes"`
}

// PairRequest identifies one decided pairing.
type PairRequest struct {
	LedgerID string `json:"ledger_id"`
	BankID   string `json:"bank_id"`
}

// RerunRequest re-scans unclaimed transactions. Fields missing from Config keep their defaults.
type RerunRequest struct {
	Config   matcher.Config `json:"config"`
	MinScore *float64       `json:"min_score"`
}

// ListParams holds paging for archive listings.
type ListParams struct {
	Limit int `json:"limit"`
}

// DefaultRunListParams returns default values for run list params.
func DefaultRunListParams() ListParams {
	return ListParams{
		Limit: 20,
	}
}
