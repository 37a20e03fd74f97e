package storage

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu      sync.Mutex
	runs    map[string]RunRecord
	audit   []AuditRecord
	auditID map[string]bool

	// Hooks for test assertions
	SaveRunCalls   int
	LastSavedRun   *RunRecord
	SaveAuditCalls int

	// Error injection for testing error paths
	SaveRunErr   error
	GetRunErr    error
	ListRunsErr  error
	SaveAuditErr error
	ListAuditErr error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:    make(map[string]RunRecord),
		auditID: make(map[string]bool),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun stores a copy of the run
func (m *MockRepository) SaveRun(_ context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalls++
	copied := *run
	m.LastSavedRun = &copied
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	m.runs[run.ID] = copied
	return nil
}

// GetRun returns sql.ErrNoRows for unknown ids, like the SQLite implementation
func (m *MockRepository) GetRun(_ context.Context, id string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRunErr != nil {
		return nil, m.GetRunErr
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &run, nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}

	runs := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveAuditEntries appends entries whose ids have not been seen
func (m *MockRepository) SaveAuditEntries(_ context.Context, runID string, entries []review.AuditEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveAuditCalls++
	if m.SaveAuditErr != nil {
		return 0, m.SaveAuditErr
	}

	inserted := 0
	now := time.Now().UTC()
	for _, e := range entries {
		if m.auditID[e.ID] {
			continue
		}
		m.auditID[e.ID] = true
		m.audit = append(m.audit, AuditRecord{RunID: runID, ArchivedAt: now, Entry: e})
		inserted++
	}
	return inserted, nil
}

// ListAuditEntries filters archived entries, newest first
func (m *MockRepository) ListAuditEntries(_ context.Context, filters AuditFilters) ([]AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListAuditErr != nil {
		return nil, m.ListAuditErr
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	out := make([]AuditRecord, 0)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		rec := m.audit[i]
		if filters.LedgerID != "" && rec.Entry.Ledger.ID != filters.LedgerID {
			continue
		}
		if filters.Action != "" && string(rec.Entry.Action) != filters.Action {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
