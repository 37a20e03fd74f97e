// Package export renders reconciliation outcomes as downloadable CSV and JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/review"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

const dateLayout = "2006-01-02"

// IDNote accompanies every export so readers do not mistake ids for source file ids.
const IDNote = "All ids in this export are the identifiers supplied at load time; they are not row numbers from the source files."

// MatchRow is one confirmed pairing
type MatchRow struct {
	LedgerID          string `csv:"Ledger_ID"`
	LedgerDate        string `csv:"Ledger_Date"`
	LedgerType        string `csv:"Ledger_Type"`
	LedgerVendor      string `csv:"Ledger_Vendor"`
	LedgerDescription string `csv:"Ledger_Description"`
	LedgerAmount      string `csv:"Ledger_Amount"`
	BankID            string `csv:"Bank_ID"`
	BankDate          string `csv:"Bank_Date"`
	BankType          string `csv:"Bank_Type"`
	BankVendor        string `csv:"Bank_Vendor"`
	BankDescription   string `csv:"Bank_Description"`
	BankAmount        string `csv:"Bank_Amount"`
	MatchScore        string `csv:"Match_Score"`
	Confidence        string `csv:"Confidence"`
	Notes             string `csv:"Notes"`
	MatchedAt         string `csv:"Matched_At"`
}

// TransactionRow is one unmatched transaction
type TransactionRow struct {
	ID          string `csv:"ID"`
	Date        string `csv:"Date"`
	Type        string `csv:"Type"`
	Vendor      string `csv:"Vendor"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Reference   string `csv:"Reference"`
	Category    string `csv:"Category"`
}

// AuditRow is one audit trail entry
type AuditRow struct {
	ID             string `csv:"ID"`
	Timestamp      string `csv:"Timestamp"`
	Action         string `csv:"Action"`
	LedgerID       string `csv:"Ledger_ID"`
	LedgerVendor   string `csv:"Ledger_Vendor"`
	LedgerAmount   string `csv:"Ledger_Amount"`
	BankID         string `csv:"Bank_ID"`
	BankVendor     string `csv:"Bank_Vendor"`
	BankAmount     string `csv:"Bank_Amount"`
	Confidence     string `csv:"Confidence"`
	HeuristicScore string `csv:"Heuristic_Score"`
	Explanation    string `csv:"Explanation"`
	Notes          string `csv:"Notes"`
}

// WriteMatchesCSV writes confirmed decisions. Decisions without a counterpart are skipped.
func WriteMatchesCSV(w io.Writer, confirmed []review.Decision) error {
	rows := make([]*MatchRow, 0, len(confirmed))
	for _, d := range confirmed {
		if d.Result.Bank == nil {
			continue
		}
		l, b := d.Result.Ledger, *d.Result.Bank
		rows = append(rows, &MatchRow{
			LedgerID:          l.ID,
			LedgerDate:        l.Date.Format(dateLayout),
			LedgerType:        typeLabel(l.Type),
			LedgerVendor:      l.Vendor,
			LedgerDescription: l.Description,
			LedgerAmount:      l.Amount.StringFixed(2),
			BankID:            b.ID,
			BankDate:          b.Date.Format(dateLayout),
			BankType:          typeLabel(b.Type),
			BankVendor:        b.Vendor,
			BankDescription:   b.Description,
			BankAmount:        b.Amount.StringFixed(2),
			MatchScore:        formatScore(d.Result.HeuristicScore),
			Confidence:        formatScore(d.Result.Confidence),
			Notes:             d.Notes,
			MatchedAt:         d.DecidedAt.Format(time.RFC3339),
		})
	}
	return marshal(w, rows)
}

// WriteTransactionsCSV writes transactions in the order given
func WriteTransactionsCSV(w io.Writer, txns []txn.Transaction) error {
	rows := make([]*TransactionRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, &TransactionRow{
			ID:          t.ID,
			Date:        t.Date.Format(dateLayout),
			Type:        typeLabel(t.Type),
			Vendor:      t.Vendor,
			Description: t.Description,
			Amount:      t.Amount.StringFixed(2),
			Reference:   t.Reference,
			Category:    t.Category,
		})
	}
	return marshal(w, rows)
}

// WriteAuditCSV writes the audit trail oldest first
func WriteAuditCSV(w io.Writer, entries []review.AuditEntry) error {
	rows := make([]*AuditRow, 0, len(entries))
	for _, e := range entries {
		row := &AuditRow{
			ID:             e.ID,
			Timestamp:      e.Timestamp.Format(time.RFC3339),
			Action:         string(e.Action),
			LedgerID:       e.Ledger.ID,
			LedgerVendor:   e.Ledger.Vendor,
			LedgerAmount:   e.Ledger.Amount.StringFixed(2),
			BankID:         e.BankID(),
			BankVendor:     e.BankVendor(),
			Confidence:     formatScore(e.Confidence),
			HeuristicScore: formatScore(e.HeuristicScore),
			Explanation:    e.Explanation,
			Notes:          e.Notes,
		}
		if amt := e.BankAmount(); amt != nil {
			row.BankAmount = amt.StringFixed(2)
		}
		rows = append(rows, row)
	}
	return marshal(w, rows)
}

// Summary is the JSON overview of a reconciliation
type Summary struct {
	GeneratedAt     time.Time `json:"generated_at"`
	TotalLedger     int       `json:"total_ledger_transactions"`
	TotalBank       int       `json:"total_bank_transactions"`
	Confirmed       int       `json:"confirmed_matches"`
	Rejected        int       `json:"rejected_matches"`
	Excluded        int       `json:"excluded_transactions"`
	Skipped         int       `json:"skipped_matches"`
	Pending         int       `json:"pending_review"`
	UnmatchedLedger int       `json:"unmatched_ledger"`
	UnmatchedBank   int       `json:"unmatched_bank"`
	MatchRate       float64   `json:"match_rate"`
}

// NewSummary combines review stats with the unmatched counts
func NewSummary(stats review.Stats, unmatchedLedger, unmatchedBank int, at time.Time) Summary {
	return Summary{
		GeneratedAt:     at,
		TotalLedger:     stats.TotalLedger,
		TotalBank:       stats.TotalBank,
		Confirmed:       stats.Confirmed,
		Rejected:        stats.Rejected,
		Excluded:        stats.Excluded,
		Skipped:         stats.Skipped,
		Pending:         stats.Pending,
		UnmatchedLedger: unmatchedLedger,
		UnmatchedBank:   unmatchedBank,
		MatchRate:       stats.MatchRate(),
	}
}

// AuditDocument is the JSON audit export
type AuditDocument struct {
	Note      string              `json:"note"`
	Summary   Summary             `json:"summary"`
	Decisions []review.AuditEntry `json:"decisions"`
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func marshal[T any](w io.Writer, rows []*T) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func typeLabel(t txn.Type) string {
	if t == txn.MoneyIn {
		return "Money In"
	}
	return "Money Out"
}

func formatScore(f float64) string {
	return fmt.Sprintf("%.4f", f)
}
