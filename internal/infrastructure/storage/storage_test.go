package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "archive.db")
}

func openStore(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleEntry(id string, action review.Action, at time.Time) review.AuditEntry {
	bank := txn.Transaction{ID: "B1", Vendor: "AMZN", Amount: decimal.RequireFromString("100.00"), Type: txn.MoneyOut, Date: txn.NewDate(2024, 1, 10)}
	return review.AuditEntry{
		ID:        id,
		Timestamp: at,
		Action:    action,
		Ledger: txn.Transaction{
			ID:     "L1",
			Vendor: "Amazon",
			Amount: decimal.RequireFromString("100.00"),
			Type:   txn.MoneyOut,
			Date:   txn.NewDate(2024, 1, 10),
		},
		Bank:           &bank,
		Confidence:     0.93,
		HeuristicScore: 0.91,
		Explanation:    "Same merchant, same day",
		MatchingConfig: matcher.DefaultConfig(),
	}
}

func TestStorage_MigrationsAreIdempotent(t *testing.T) {
	path := createTempDB(t)

	first, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStorage(path)
	require.NoError(t, err)
	defer second.Close()

	var count int
	err = second.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('match_runs','audit_entries')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStorage_SaveAndGetRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	run := &RunRecord{
		ID:        "run-1",
		Status:    "running",
		StartedAt: started,
		Total:     10,
		Config:    matcher.DefaultConfig(),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	completed := started.Add(time.Minute)
	run.Status = "done"
	run.Processed = 10
	run.Matched = 7
	run.Unmatched = 3
	run.CompletedAt = &completed
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "done", got.Status)
	assert.Equal(t, 7, got.Matched)
	assert.Equal(t, matcher.DefaultConfig(), got.Config)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completed.Equal(*got.CompletedAt))

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStorage_ListRuns_NewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, &RunRecord{ID: id, Status: "done", StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestStorage_SaveAuditEntries_SkipsDuplicates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC)

	entries := []review.AuditEntry{
		sampleEntry("e1", review.ActionMatch, at),
		sampleEntry("e2", review.ActionReject, at.Add(time.Minute)),
	}

	n, err := store.SaveAuditEntries(ctx, "run-1", entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.SaveAuditEntries(ctx, "run-1", entries)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	records, err := store.ListAuditEntries(ctx, AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "e2", records[0].Entry.ID)
	assert.Equal(t, "run-1", records[0].RunID)
	require.NotNil(t, records[1].Entry.Bank)
	assert.Equal(t, "B1", records[1].Entry.Bank.ID)
	assert.True(t, decimal.RequireFromString("100").Equal(records[1].Entry.Ledger.Amount))

	rejects, err := store.ListAuditEntries(ctx, AuditFilters{Action: string(review.ActionReject)})
	require.NoError(t, err)
	require.Len(t, rejects, 1)
	assert.Equal(t, "e2", rejects[0].Entry.ID)
}

func TestMockRepository_ErrorInjection(t *testing.T) {
	repo := NewMockRepository()
	repo.SaveRunErr = os.ErrPermission

	err := repo.SaveRun(context.Background(), &RunRecord{ID: "x"})

	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, repo.SaveRunCalls)
	_, err = repo.GetRun(context.Background(), "x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
