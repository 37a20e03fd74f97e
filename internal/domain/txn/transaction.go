// Package txn holds the normalized transaction record shared by the ledger
// and bank sides of a reconciliation.
package txn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the direction of money movement.
type Type string

const (
	MoneyIn  Type = "money_in"
	MoneyOut Type = "money_out"
)

// Valid reports whether t is a known direction.
func (t Type) Valid() bool {
	return t == MoneyIn || t == MoneyOut
}

// Source identifies which side of the reconciliation a transaction came from.
type Source string

const (
	Ledger Source = "ledger"
	Bank   Source = "bank"
)

// ErrInvalidTransaction is returned when a transaction fails validation.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is a single normalized money movement.
// Amount is always non-negative; direction lives in Type.
type Transaction struct {
	ID          string          `json:"id"`
	Date        Date            `json:"date"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"txn_type"`
	Reference   string          `json:"reference,omitempty"`
	Category    string          `json:"category,omitempty"`
	Source      Source          `json:"source"`
	OriginalRow int             `json:"original_row"`
}

// HasReference reports whether the transaction carries a non-blank reference.
func (t Transaction) HasReference() bool {
	return strings.TrimSpace(t.Reference) != ""
}

// Validate checks the invariants every transaction must satisfy.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: %s has negative amount %s", ErrInvalidTransaction, t.ID, t.Amount)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %s has unknown txn_type %q", ErrInvalidTransaction, t.ID, t.Type)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: %s has no date", ErrInvalidTransaction, t.ID)
	}
	return nil
}

// ValidateAll validates every transaction and rejects duplicate ids within the slice.
func ValidateAll(txns []Transaction) error {
	seen := make(IDSet, len(txns))
	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen.Has(t.ID) {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidTransaction, t.ID)
		}
		seen.Add(t.ID)
	}
	return nil
}

// LoadFile reads a JSON array of normalized transactions and stamps them with source.
func LoadFile(path string, source Source) ([]Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var txns []Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i := range txns {
		txns[i].Source = source
		if txns[i].OriginalRow == 0 {
			txns[i].OriginalRow = i + 1
		}
	}
	if err := ValidateAll(txns); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txns, nil
}

// Date is a calendar date. Time-of-day is discarded.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

var acceptedLayouts = []string{
	dateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a plain date or an ISO timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the absolute number of calendar days separating a and b.
func DaysBetween(a, b Date) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
