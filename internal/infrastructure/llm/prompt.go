package llm

import (
	"fmt"
	"strings"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// BuildPrompt renders the matching question for a ledger transaction and its ranked candidates.
// Only the first selector.MaxCandidates candidates are shown.
func BuildPrompt(req selector.Request) string {
	candidates := req.Candidates
	if len(candidates) > selector.MaxCandidates {
		candidates = candidates[:selector.MaxCandidates]
	}

	var b strings.Builder
	b.WriteString("You are a financial transaction matching expert. Decide whether a company ledger entry ")
	b.WriteString("matches any of the bank transaction candidates below.\n\n")

	b.WriteString("LEDGER ENTRY:\n")
	writeLedger(&b, req.Ledger)

	b.WriteString("\nBANK CANDIDATES (ranked by heuristic score):\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "\nCandidate %d:\n", i+1)
		fmt.Fprintf(&b, "  - Vendor: %s\n", c.Bank.Vendor)
		fmt.Fprintf(&b, "  - Description: %s\n", c.Bank.Description)
		fmt.Fprintf(&b, "  - Amount: $%s\n", c.Bank.Amount.StringFixed(2))
		fmt.Fprintf(&b, "  - Date: %s\n", c.Bank.Date)
		fmt.Fprintf(&b, "  - Type: %s\n", c.Bank.Type)
		fmt.Fprintf(&b, "  - Heuristic score: %.2f (%s)\n", c.Score, c.Confidence)
		fmt.Fprintf(&b, "  - Components: amount=%.2f date=%.2f vendor=%.2f\n",
			c.ComponentScores[matcher.ComponentAmount],
			c.ComponentScores[matcher.ComponentDate],
			c.ComponentScores[matcher.ComponentVendor])
	}

	b.WriteString("\nMATCHING RULES:\n")
	fmt.Fprintf(&b, "- Amount tolerance: $%.2f\n", req.Config.AmountTolerance)
	fmt.Fprintf(&b, "- Date window: %d days\n", req.Config.DateWindowDays)
	fmt.Fprintf(&b, "- Vendor similarity threshold: %.0f%%\n", req.Config.VendorThreshold*100)
	if req.Config.RequireReference {
		b.WriteString("- References must match\n")
	}

	b.WriteString(`
Consider whether the amounts are compatible, the dates are reasonable, and the vendors could be
the same entity allowing for abbreviations and naming conventions. Be conservative: a missed match
goes to human review, a wrong match does not.

Return ONLY a JSON object:
{"selected_candidate": 1, "confidence": 0.85, "explanation": "One or two sentences citing the details that decided it."}

selected_candidate is the 1-based candidate number, or null if none match. confidence is between 0.0 and 1.0.
`)
	return b.String()
}

func writeLedger(b *strings.Builder, t txn.Transaction) {
	fmt.Fprintf(b, "- Vendor: %s\n", t.Vendor)
	fmt.Fprintf(b, "- Description: %s\n", t.Description)
	fmt.Fprintf(b, "- Amount: $%s\n", t.Amount.StringFixed(2))
	fmt.Fprintf(b, "- Date: %s\n", t.Date)
	fmt.Fprintf(b, "- Type: %s\n", t.Type)
	ref := t.Reference
	if !t.HasReference() {
		ref = "N/A"
	}
	fmt.Fprintf(b, "- Reference: %s\n", ref)
}
