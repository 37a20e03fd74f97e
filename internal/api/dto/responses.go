package dto

import (
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Assisted  bool   `json:"assisted"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse(assisted bool) HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Assisted:  assisted,
	}
}

// SetTransactionsResponse confirms a pool replacement.
type SetTransactionsResponse struct {
	LedgerCount int `json:"ledger_count"`
	BankCount   int `json:"bank_count"`
}

// ProgressResponse wraps run progress with derived fields.
type ProgressResponse struct {
	session.Progress
	Percent        float64 `json:"percent"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// NewProgressResponse derives the percentage and elapsed time at now.
func NewProgressResponse(p session.Progress, now time.Time) ProgressResponse {
	return ProgressResponse{
		Progress:       p,
		Percent:        p.Percent(),
		ElapsedSeconds: p.Elapsed(now).Seconds(),
	}
}

// RunResponse is returned by the run lifecycle endpoints.
type RunResponse struct {
	Started  bool             `json:"started"`
	Progress ProgressResponse `json:"progress"`
}

// NextResponse is the result at the review cursor.
type NextResponse struct {
	Done   bool                 `json:"done"`
	Index  int                  `json:"index"`
	Total  int                  `json:"total"`
	Result *matcher.MatchResult `json:"result,omitempty"`
}

// ActionResponse reports the acted-on result and the new cursor position.
type ActionResponse struct {
	Action review.Action       `json:"action"`
	Result matcher.MatchResult `json:"result"`
	Cursor int                 `json:"cursor"`
	Stats  review.Stats        `json:"stats"`
}

// PendingResponse lists queue entries awaiting a decision.
type PendingResponse struct {
	Items []session.PendingItem `json:"items"`
	Count int                   `json:"count"`
}

// StatsResponse is review progress plus the match rate.
type StatsResponse struct {
	review.Stats
	MatchRate float64 `json:"match_rate"`
}

// AuditResponse lists the live audit trail.
type AuditResponse struct {
	Entries []review.AuditEntry `json:"entries"`
	Count   int                 `json:"count"`
}

// TransactionListResponse lists unmatched transactions.
// Results carries the last run's unmatched explanations when relevant.
type TransactionListResponse struct {
	Transactions []txn.Transaction     `json:"transactions"`
	Count        int                   `json:"count"`
	Results      []matcher.MatchResult `json:"run_unmatched,omitempty"`
}

// DecisionListResponse lists confirmed or rejected decisions.
type DecisionListResponse struct {
	Decisions []review.Decision `json:"decisions"`
	Count     int               `json:"count"`
}

// ExclusionListResponse lists excluded transactions.
type ExclusionListResponse struct {
	Exclusions []review.Exclusion `json:"exclusions"`
	Count      int                `json:"count"`
}

// RerunResponse reports how many results were queued.
type RerunResponse struct {
	Added int          `json:"added"`
	Stats review.Stats `json:"stats"`
}

// ArchiveResponse reports an audit archive snapshot.
type ArchiveResponse struct {
	RunID    string `json:"run_id,omitempty"`
	Archived int    `json:"archived"`
	Total    int    `json:"total"`
}

// RunListResponse lists archived runs.
type RunListResponse struct {
	Runs  []storage.RunRecord `json:"runs"`
	Count int                 `json:"count"`
}

// ArchivedAuditResponse lists archived audit records.
type ArchivedAuditResponse struct {
	Records []storage.AuditRecord `json:"records"`
	Count   int                   `json:"count"`
}
