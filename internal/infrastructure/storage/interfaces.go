package storage

import (
	"context"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
)

// Repository defines the complete archive interface.
// The live session never reads from it; it only records finished runs and
// snapshots of the audit trail.
type Repository interface {
	RunRepository
	AuditRepository
	Close() error
}

// RunRepository handles match run history
type RunRepository interface {
	// SaveRun inserts or updates a run record by ID
	SaveRun(ctx context.Context, run *RunRecord) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// AuditRepository archives audit trail entries
type AuditRepository interface {
	// SaveAuditEntries stores entries not already archived and returns how many were new
	SaveAuditEntries(ctx context.Context, runID string, entries []review.AuditEntry) (int, error)

	// ListAuditEntries returns archived entries, newest first
	ListAuditEntries(ctx context.Context, filters AuditFilters) ([]AuditRecord, error)
}

// AuditFilters narrows ListAuditEntries
type AuditFilters struct {
	LedgerID string // Filter by ledger transaction (empty = all)
	Action   string // Filter by action (empty = all)
	Limit    int    // Max results (0 = default 100)
}
