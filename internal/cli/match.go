package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/export"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/logging"
)

// MatchReport is the offline match command's JSON output.
type MatchReport struct {
	Progress  session.Progress      `json:"progress"`
	Summary   export.Summary        `json:"summary"`
	Matched   []matcher.MatchResult `json:"matched"`
	Unmatched []matcher.MatchResult `json:"unmatched"`
	Unclaimed []txn.Transaction     `json:"unmatched_bank"`
}

// RunMatch matches two transaction files offline and writes a JSON report.
// Cancelling ctx stops the run; the partial report is still written.
func RunMatch(ctx context.Context, cfg *config.Config, flags MatchFlags, stdout, stderr io.Writer) error {
	if flags.LedgerPath == "" || flags.BankPath == "" {
		return fmt.Errorf("--ledger and --bank are required")
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	} else if loggingCfg.Level == "" || loggingCfg.Level == "info" {
		// Keep info chatter from tearing the progress bar
		loggingCfg.Level = "warn"
	}
	logger := logging.NewLoggerTo(stderr, loggingCfg)

	ledger, err := txn.LoadFile(flags.LedgerPath, txn.Ledger)
	if err != nil {
		return err
	}
	bank, err := txn.LoadFile(flags.BankPath, txn.Bank)
	if err != nil {
		return err
	}

	matchCfg := cfg.Matching.MatcherConfig()
	if flags.VendorThreshold >= 0 {
		matchCfg.VendorThreshold = flags.VendorThreshold
	}
	if flags.DateWindowDays >= 0 {
		matchCfg.DateWindowDays = flags.DateWindowDays
	}

	var bar *progressbar.ProgressBar
	if !flags.NoProgress {
		bar = newProgressBar(stderr, len(ledger))
	}
	onProgress := func(p session.Progress) {
		if bar != nil {
			_ = bar.Set(p.Processed)
		}
	}

	app, err := BuildApp(ctx, cfg, logger, onProgress)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Session.SetTransactions(ledger, bank); err != nil {
		return err
	}

	PrintHeader(stderr, len(ledger), len(bank), app.Selector.Assisted())

	if _, _, err := app.Orchestrator.Start(matchCfg); err != nil {
		return err
	}

	finished := make(chan struct{})
	go func() {
		app.Orchestrator.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		_, _ = app.Orchestrator.Stop()
		<-finished
	}
	if bar != nil {
		_ = bar.Finish()
	}

	snap := app.Session.Snapshot()
	report := MatchReport{
		Progress:  snap.Progress,
		Summary:   export.NewSummary(snap.Stats, len(snap.UnmatchedLedger), len(snap.UnmatchedBank), time.Now()),
		Matched:   make([]matcher.MatchResult, 0, len(snap.Pending)),
		Unmatched: snap.RunUnmatched,
		Unclaimed: unproposedBank(snap),
	}
	for _, item := range snap.Pending {
		report.Matched = append(report.Matched, item.Result)
	}

	PrintRunSummary(stderr, snap.Progress, time.Now())

	out := stdout
	if flags.OutputPath != "" {
		f, err := os.Create(flags.OutputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.WriteJSON(out, report)
}

// unproposedBank lists bank transactions no matched result points at.
func unproposedBank(snap session.Snapshot) []txn.Transaction {
	proposed := txn.NewIDSet()
	for _, item := range snap.Pending {
		if id := item.Result.BankID(); id != "" {
			proposed.Add(id)
		}
	}
	out := make([]txn.Transaction, 0, len(snap.UnmatchedBank))
	for _, t := range snap.UnmatchedBank {
		if !proposed.Has(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Matching transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}
