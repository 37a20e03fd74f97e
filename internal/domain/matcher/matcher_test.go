package matcher

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// Helper to create test transaction
func makeTransaction(id, vendor, amount string, date txn.Date, typ txn.Type) txn.Transaction {
	return txn.Transaction{
		ID:     id,
		Date:   date,
		Vendor: vendor,
		Amount: decimal.RequireFromString(amount),
		Type:   typ,
	}
}

func newTestMatcher(t *testing.T, cfg Config) *Matcher {
	t.Helper()
	m, err := NewMatcher(cfg)
	require.NoError(t, err)
	return m
}

var jan10 = txn.NewDate(2024, time.January, 10)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"threshold above one", func(c *Config) { c.VendorThreshold = 1.2 }, true},
		{"negative threshold", func(c *Config) { c.VendorThreshold = -0.1 }, true},
		{"negative tolerance", func(c *Config) { c.AmountTolerance = -1 }, true},
		{"negative window", func(c *Config) { c.DateWindowDays = -3 }, true},
		{"zero window", func(c *Config) { c.DateWindowDays = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewMatcherWithWeights_RejectsBadSum(t *testing.T) {
	w := DefaultWeights()
	w.Amount = 0.5

	_, err := NewMatcherWithWeights(DefaultConfig(), w)

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMatcher_AmountScore(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "100.00", "100.00", 1.0},
		{"one cent at tolerance edge", "100.00", "100.01", 0.9},
		{"far apart", "100.00", "150.00", math.Exp(-5)},
		{"zero amounts", "0", "0", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, explanation := m.AmountScore(decimal.RequireFromString(tt.a), decimal.RequireFromString(tt.b))
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.NotEmpty(t, explanation)
		})
	}
}

func TestMatcher_DateScore(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())

	tests := []struct {
		name string
		days int
		want float64
	}{
		{"same day", 0, 1.0},
		{"one day", 1, 1.0 - (1.0/3.0)*0.5},
		{"window edge", 3, 0.5},
		{"one past window", 4, 0.2},
		{"far past window", 10, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := txn.Date{Time: jan10.AddDate(0, 0, tt.days)}
			got, _ := m.DateScore(jan10, other)
			assert.InDelta(t, tt.want, got, 1e-9)

			reversed, _ := m.DateScore(other, jan10)
			assert.InDelta(t, got, reversed, 1e-9)
		})
	}
}

func TestMatcher_ReferenceScore(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both absent", "", "", 0.5},
		{"one absent", "INV-1", "", 0.3},
		{"case insensitive equal", "inv-1 ", "INV-1", 1.0},
		{"unrelated", "INV-1", "ZZZZZZ", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := m.ReferenceScore(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMatcher_Symmetry(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())

	vendors := [][2]string{
		{"Amazon", "AMZN"},
		{"Whole Foods Market", "WHOLE FOODS #123"},
		{"  starbucks  coffee", "Coffee Starbucks"},
		{"Shell", "Chevron"},
	}
	for _, v := range vendors {
		ab, _ := m.VendorScore(v[0], v[1])
		ba, _ := m.VendorScore(v[1], v[0])
		assert.InDelta(t, ab, ba, 1e-12, "vendor score for %q/%q", v[0], v[1])
	}

	amounts := [][2]string{{"100.00", "100.01"}, {"12.50", "99.99"}, {"0", "5"}}
	for _, a := range amounts {
		x, y := decimal.RequireFromString(a[0]), decimal.RequireFromString(a[1])
		ab, _ := m.AmountScore(x, y)
		ba, _ := m.AmountScore(y, x)
		assert.InDelta(t, ab, ba, 1e-12)
	}
}

func TestMatcher_Identity(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())
	x := makeTransaction("L1", "Corner Bakery", "42.17", jan10, txn.MoneyOut)
	y := x
	y.ID = "B1"

	amount, _ := m.AmountScore(x.Amount, x.Amount)
	date, _ := m.DateScore(x.Date, x.Date)
	vendor, _ := m.VendorScore("Corner  Bakery", "corner bakery")
	candidate := m.Score(x, y)

	assert.Equal(t, 1.0, amount)
	assert.Equal(t, 1.0, date)
	assert.Equal(t, 1.0, vendor)
	assert.GreaterOrEqual(t, candidate.Score, 0.85)
	assert.Equal(t, ConfidenceHigh, candidate.Confidence)
}

func TestMatcher_VetoPrecedence(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())

	tests := []struct {
		name   string
		ledger txn.Transaction
		bank   txn.Transaction
	}{
		{
			name:   "otherwise identical",
			ledger: makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyOut),
			bank:   makeTransaction("B1", "Amazon", "100.00", jan10, txn.MoneyIn),
		},
		{
			name:   "dissimilar vendor",
			ledger: makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyIn),
			bank:   makeTransaction("B1", "Utility Co", "3.00", jan10, txn.MoneyOut),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := m.Score(tt.ledger, tt.bank)
			assert.Equal(t, 0.1, c.Score)
			assert.Equal(t, ConfidenceLow, c.Confidence)
			assert.Contains(t, c.Explanations, "Cannot match: different transaction types")
		})
	}
}

func TestMatcher_ScenarioA_VendorAlias(t *testing.T) {
	// Arrange
	m := newTestMatcher(t, DefaultConfig())
	ledger := makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyOut)
	bank := makeTransaction("B1", "AMZN", "100.00", jan10, txn.MoneyOut)

	// Act
	c := m.Score(ledger, bank)

	// Assert
	require.GreaterOrEqual(t, c.ComponentScores[ComponentVendor], 0.80)
	assert.GreaterOrEqual(t, c.Score, 0.85)
	assert.Equal(t, ConfidenceHigh, c.Confidence)
	assert.Equal(t, "Exact amount match ($100.00)", c.Explanations[1])
}

func TestMatcher_ScenarioB_AmountMismatch(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())
	ledger := makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyOut)
	bank := makeTransaction("B1", "AMZN", "150.00", jan10, txn.MoneyOut)

	c := m.Score(ledger, bank)

	assert.InDelta(t, math.Exp(-5), c.ComponentScores[ComponentAmount], 1e-9)
	assert.Less(t, c.Score, 0.65)
	assert.Equal(t, ConfidenceLow, c.Confidence)
}

func TestMatcher_ScenarioC_RequiredReference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireReference = true
	m := newTestMatcher(t, cfg)
	ledger := makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyOut)
	ledger.Reference = "INV-1"
	bank := makeTransaction("B1", "Amazon", "100.00", jan10, txn.MoneyOut)

	c := m.Score(ledger, bank)

	assert.Equal(t, 0.3, c.ComponentScores[ComponentReference])
	assert.Equal(t, 0.1, c.Score)
	assert.Contains(t, c.Explanations, "Reference required but not matched")
}

func TestMatcher_VendorPenalty(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())
	ledger := makeTransaction("L1", "Shell", "40.00", jan10, txn.MoneyOut)
	bank := makeTransaction("B1", "Chevron", "40.00", jan10, txn.MoneyOut)

	c := m.Score(ledger, bank)

	vendor := c.ComponentScores[ComponentVendor]
	require.Less(t, vendor, 0.80)
	unpenalized := 0.35 + 0.25 + 0.30*vendor + 0.05*0.5 + 0.05
	assert.InDelta(t, unpenalized*0.5, c.Score, 1e-9)
}

func TestMatcher_FindCandidates(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())
	ledger := makeTransaction("L1", "Amazon", "100.00", jan10, txn.MoneyOut)
	pool := []txn.Transaction{
		makeTransaction("B1", "Amazon", "150.00", jan10, txn.MoneyOut),
		makeTransaction("B2", "Amazon", "100.00", jan10, txn.MoneyOut),
		makeTransaction("B3", "Amazon", "100.00", jan10, txn.MoneyOut),
		makeTransaction("B4", "Amazon", "100.00", txn.Date{Time: jan10.AddDate(0, 0, 2)}, txn.MoneyOut),
	}

	t.Run("sorted with stable ties", func(t *testing.T) {
		got := m.FindCandidates(ledger, pool, txn.NewIDSet(), DefaultTopK)

		require.Len(t, got, 4)
		assert.Equal(t, "B2", got[0].Bank.ID)
		assert.Equal(t, "B3", got[1].Bank.ID)
		assert.Equal(t, "B4", got[2].Bank.ID)
		assert.Equal(t, "B1", got[3].Bank.ID)
	})

	t.Run("skips claimed ids", func(t *testing.T) {
		got := m.FindCandidates(ledger, pool, txn.NewIDSet("B2"), DefaultTopK)

		require.NotEmpty(t, got)
		for _, c := range got {
			assert.NotEqual(t, "B2", c.Bank.ID)
		}
		assert.Equal(t, "B3", got[0].Bank.ID)
	})

	t.Run("truncates to top k", func(t *testing.T) {
		got := m.FindCandidates(ledger, pool, nil, 2)
		assert.Len(t, got, 2)
	})

	t.Run("empty pool", func(t *testing.T) {
		assert.Empty(t, m.FindCandidates(ledger, nil, nil, DefaultTopK))
	})
}

func TestMatcher_FindAllCandidates(t *testing.T) {
	m := newTestMatcher(t, DefaultConfig())
	ledgers := []txn.Transaction{
		makeTransaction("L1", "Shell", "40.00", jan10, txn.MoneyOut),
		makeTransaction("L2", "Amazon", "100.00", jan10, txn.MoneyOut),
		makeTransaction("L3", "Payroll", "2000.00", jan10, txn.MoneyIn),
	}
	pool := []txn.Transaction{
		makeTransaction("B1", "Amazon", "100.00", jan10, txn.MoneyOut),
		makeTransaction("B2", "Shell Oil", "40.00", txn.Date{Time: jan10.AddDate(0, 0, 1)}, txn.MoneyOut),
	}

	got := m.FindAllCandidates(ledgers, pool, nil, DefaultMinScore)

	require.Len(t, got, 2)
	assert.Equal(t, "L2", got[0].Ledger.ID)
	assert.Equal(t, "L1", got[1].Ledger.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}
