package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, ledgerCount, bankCount int, assisted bool) {
	mode := "HEURISTIC"
	if assisted {
		mode = "ASSISTED"
	}
	fmt.Fprintf(w, "reconcile: %d ledger vs %d bank transactions (%s mode)\n\n", ledgerCount, bankCount, mode)
}

// PrintRunSummary prints the run result summary
func PrintRunSummary(w io.Writer, p session.Progress, now time.Time) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Status=%s Processed=%d/%d Matched=%d Unmatched=%d\n",
		p.Status,
		p.Processed,
		p.Total,
		p.Matched,
		p.Unmatched)

	if elapsed := p.Elapsed(now); elapsed > 0 {
		fmt.Fprintf(w, "Elapsed: %s\n", FormatDuration(elapsed))
	}

	if p.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", p.Error)
	}
}

// FormatDuration renders d for humans, e.g. "1 minute 5 seconds"
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return durafmt.Parse(d.Round(time.Second)).LimitFirstN(2).String()
}
