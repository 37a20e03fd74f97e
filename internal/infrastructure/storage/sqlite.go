package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage provides SQLite access to the run and audit archive.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens (or creates) the archive database and applies migrations
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}
	if err := s.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) runMigrations(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, sub)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun upserts a run record
func (s *Storage) SaveRun(ctx context.Context, run *RunRecord) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to encode run config: %w", err)
	}

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	query := `
	INSERT INTO match_runs
	(id, status, started_at, completed_at, total, processed, matched, unmatched, config_json, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		completed_at = excluded.completed_at,
		total = excluded.total,
		processed = excluded.processed,
		matched = excluded.matched,
		unmatched = excluded.unmatched,
		config_json = excluded.config_json,
		error_message = excluded.error_message
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		completedAt,
		run.Total,
		run.Processed,
		run.Matched,
		run.Unmatched,
		string(configJSON),
		run.Error,
	)
	return err
}

const runColumns = `id, status, started_at, completed_at, total, processed, matched, unmatched, config_json, error_message`

// GetRun retrieves a run by ID
func (s *Storage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM match_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM match_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		run         RunRecord
		completedAt sql.NullTime
		configJSON  string
	)
	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&run.Total,
		&run.Processed,
		&run.Matched,
		&run.Unmatched,
		&configJSON,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
			return nil, fmt.Errorf("run %s has corrupt config: %w", run.ID, err)
		}
	}
	return &run, nil
}

// SaveAuditEntries archives entries in one transaction. Entries already
// archived are left untouched.
func (s *Storage) SaveAuditEntries(ctx context.Context, runID string, entries []review.AuditEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO audit_entries
	(id, run_id, recorded_at, action, ledger_id, bank_id, ledger_vendor, bank_vendor,
	 ledger_amount, bank_amount, confidence, heuristic_score, explanation, notes, entry_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("failed to encode audit entry %s: %w", e.ID, err)
		}

		bankAmount := ""
		if amt := e.BankAmount(); amt != nil {
			bankAmount = amt.StringFixed(2)
		}

		res, err := stmt.ExecContext(ctx,
			e.ID,
			runID,
			e.Timestamp,
			string(e.Action),
			e.Ledger.ID,
			e.BankID(),
			e.Ledger.Vendor,
			e.BankVendor(),
			e.Ledger.Amount.StringFixed(2),
			bankAmount,
			e.Confidence,
			e.HeuristicScore,
			e.Explanation,
			e.Notes,
			string(entryJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to archive audit entry %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListAuditEntries returns archived entries matching filters, newest first
func (s *Storage) ListAuditEntries(ctx context.Context, filters AuditFilters) ([]AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	if filters.LedgerID != "" {
		where = append(where, "ledger_id = ?")
		args = append(args, filters.LedgerID)
	}
	if filters.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filters.Action)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `SELECT run_id, archived_at, entry_json FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AuditRecord, 0)
	for rows.Next() {
		var (
			rec        AuditRecord
			archivedAt sql.NullTime
			entryJSON  string
		)
		if err := rows.Scan(&rec.RunID, &archivedAt, &entryJSON); err != nil {
			return nil, err
		}
		if archivedAt.Valid {
			rec.ArchivedAt = archivedAt.Time
		}
		if err := json.Unmarshal([]byte(entryJSON), &rec.Entry); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
