package storage

import (
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
)

// RunRecord is an archived match run
type RunRecord struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Matched     int            `json:"matched"`
	Unmatched   int            `json:"unmatched"`
	Config      matcher.Config `json:"config"`
	Error       string         `json:"error,omitempty"`
}

// AuditRecord is an archived audit entry with the run it was archived under
type AuditRecord struct {
	RunID      string            `json:"run_id,omitempty"`
	ArchivedAt time.Time         `json:"archived_at"`
	Entry      review.AuditEntry `json:"entry"`
}

const defaultAuditLimit = 100
const defaultRunLimit = 50
