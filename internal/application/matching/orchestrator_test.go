package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var day = txn.NewDate(2024, time.March, 4)

func makeTxn(id, vendor, amount string, offsetDays int) txn.Transaction {
	return txn.Transaction{
		ID:     id,
		Date:   txn.Date{Time: day.AddDate(0, 0, offsetDays)},
		Vendor: vendor,
		Amount: decimal.RequireFromString(amount),
		Type:   txn.MoneyOut,
	}
}

func fixtures() ([]txn.Transaction, []txn.Transaction) {
	ledger := []txn.Transaction{
		makeTxn("L1", "Amazon", "100.00", 0),
		makeTxn("L2", "Shell", "40.00", 0),
		makeTxn("L3", "Costco", "75.10", 1),
		makeTxn("L4", "Landlord LLC", "1500.00", 0),
		makeTxn("L5", "Starbucks", "6.45", 0),
	}
	bank := []txn.Transaction{
		makeTxn("B1", "AMZN", "100.00", 0),
		makeTxn("B2", "Shell Oil", "40.00", 1),
		makeTxn("B3", "Costco Whse", "75.10", 0),
		makeTxn("B5", "Starbucks", "6.45", 2),
	}
	return ledger, bank
}

// firstPicker always selects the top candidate with fixed confidence.
type firstPicker struct {
	mu    sync.Mutex
	calls int
}

func (p *firstPicker) Decide(_ context.Context, req selector.Request) (selector.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return selector.Response{Selected: 1, Confidence: 0.8, Explanation: "picked " + req.Candidates[0].Bank.ID}, nil
}

// gatedPicker blocks its first call until release is closed.
type gatedPicker struct {
	firstPicker
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedPicker() *gatedPicker {
	return &gatedPicker{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedPicker) Decide(ctx context.Context, req selector.Request) (selector.Response, error) {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return p.firstPicker.Decide(ctx, req)
}

type panickingPicker struct{}

func (panickingPicker) Decide(context.Context, selector.Request) (selector.Response, error) {
	panic("decision service exploded")
}

type blockingPicker struct{ entered chan struct{} }

func (p blockingPicker) Decide(ctx context.Context, _ selector.Request) (selector.Response, error) {
	close(p.entered)
	<-ctx.Done()
	return selector.Response{}, ctx.Err()
}

func newOrchestrator(t *testing.T, maker selector.DecisionMaker, runs storage.RunRepository, opts Options) (*Orchestrator, *session.Session) {
	t.Helper()
	sess := session.New(testLogger())
	ledger, bank := fixtures()
	require.NoError(t, sess.SetTransactions(ledger, bank))
	sel := selector.New(maker, time.Second, testLogger())
	return NewOrchestrator(sess, sel, runs, testLogger(), opts), sess
}

type outcome struct {
	Ledger     string
	Bank       string
	Confidence float64
}

func outcomes(s *session.Session) (matched, unmatched []outcome) {
	snap := s.Snapshot()
	for _, p := range snap.Pending {
		matched = append(matched, outcome{p.Result.Ledger.ID, p.Result.BankID(), p.Result.Confidence})
	}
	for _, r := range snap.RunUnmatched {
		unmatched = append(unmatched, outcome{r.Ledger.ID, r.BankID(), r.Confidence})
	}
	return matched, unmatched
}

func TestOrchestrator_HeuristicRun(t *testing.T) {
	// Arrange
	repo := storage.NewMockRepository()
	var mu sync.Mutex
	var seen []int
	o, sess := newOrchestrator(t, nil, repo, Options{OnProgress: func(p session.Progress) {
		mu.Lock()
		seen = append(seen, p.Processed)
		mu.Unlock()
	}})

	// Act
	progress, started, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	require.True(t, started)
	o.Wait()

	// Assert
	assert.Equal(t, 5, progress.Total)
	final := o.Progress()
	assert.Equal(t, session.StatusDone, final.Status)
	assert.Equal(t, final.Total, final.Processed)
	assert.Equal(t, 100.0, final.Percent())

	matched, unmatched := outcomes(sess)
	require.Len(t, matched, 4)
	assert.Equal(t, "L1", matched[0].Ledger)
	assert.Equal(t, "B1", matched[0].Bank)
	assert.Equal(t, "B5", matched[3].Bank)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "L4", unmatched[0].Ledger)

	mu.Lock()
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	mu.Unlock()

	run, err := repo.GetRun(context.Background(), final.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", run.Status)
	assert.Equal(t, 4, run.Matched)
}

func TestOrchestrator_NoCandidates(t *testing.T) {
	sess := session.New(testLogger())
	require.NoError(t, sess.SetTransactions([]txn.Transaction{makeTxn("L1", "Amazon", "10", 0)}, nil))
	o := NewOrchestrator(sess, selector.New(nil, 0, testLogger()), nil, testLogger(), Options{})

	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	o.Wait()

	snap := sess.Snapshot()
	require.Len(t, snap.RunUnmatched, 1)
	assert.Equal(t, "No candidates found by heuristics", snap.RunUnmatched[0].Explanation)
	assert.Equal(t, 0.0, snap.RunUnmatched[0].HeuristicScore)
}

func TestOrchestrator_InvalidConfig(t *testing.T) {
	o, _ := newOrchestrator(t, nil, nil, Options{})
	cfg := matcher.DefaultConfig()
	cfg.AmountTolerance = -1

	_, started, err := o.Start(cfg)

	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
	assert.False(t, started)
	assert.Equal(t, session.StatusIdle, o.Progress().Status)
}

func TestOrchestrator_StartWhileActiveReturnsProgress(t *testing.T) {
	maker := newGatedPicker()
	o, _ := newOrchestrator(t, maker, nil, Options{})

	first, started, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	require.True(t, started)
	<-maker.entered

	second, startedAgain, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	assert.False(t, startedAgain)
	assert.Equal(t, first.RunID, second.RunID)

	close(maker.release)
	o.Wait()
	assert.Equal(t, session.StatusDone, o.Progress().Status)
}

func TestOrchestrator_PauseResumeEquivalence(t *testing.T) {
	// Uninterrupted baseline.
	baseline, baseSess := newOrchestrator(t, &firstPicker{}, nil, Options{})
	_, _, err := baseline.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	baseline.Wait()
	wantMatched, wantUnmatched := outcomes(baseSess)

	// Paused while the first decision is in flight.
	maker := newGatedPicker()
	o, sess := newOrchestrator(t, maker, nil, Options{})
	_, _, err = o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	<-maker.entered

	paused, err := o.Pause()
	require.NoError(t, err)
	assert.Equal(t, session.StatusPaused, paused.Status)
	close(maker.release)

	time.Sleep(50 * time.Millisecond)
	held := o.Progress()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, session.StatusPaused, o.Progress().Status)
	assert.Equal(t, held.Processed, o.Progress().Processed)
	assert.Less(t, held.Processed, held.Total)

	o.Resume()
	o.Wait()

	gotMatched, gotUnmatched := outcomes(sess)
	assert.Equal(t, session.StatusDone, o.Progress().Status)
	assert.Equal(t, wantMatched, gotMatched)
	assert.Equal(t, wantUnmatched, gotUnmatched)
}

func TestOrchestrator_StopCancelsInFlightDecision(t *testing.T) {
	repo := storage.NewMockRepository()
	maker := blockingPicker{entered: make(chan struct{})}
	o, sess := newOrchestrator(t, maker, repo, Options{})

	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	<-maker.entered

	stopped, err := o.Stop()
	require.NoError(t, err)
	assert.Equal(t, session.StatusStopped, stopped.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))

	p := sess.Progress()
	assert.Equal(t, session.StatusStopped, p.Status)
	assert.Equal(t, 0, p.Processed)

	_, err = o.Stop()
	assert.ErrorIs(t, err, session.ErrRunNotRunning)

	run, err := repo.GetRun(context.Background(), p.RunID)
	require.NoError(t, err)
	assert.Equal(t, "stopped", run.Status)
}

func TestOrchestrator_PanicMarksRunFailed(t *testing.T) {
	o, _ := newOrchestrator(t, panickingPicker{}, nil, Options{})

	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	o.Wait()

	p := o.Progress()
	assert.Equal(t, session.StatusFailed, p.Status)
	assert.Contains(t, p.Error, "decision service exploded")

	// A failed run no longer blocks a new one.
	_, started, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, started)
	_, _ = o.Stop()
	o.Wait()
}

func TestOrchestrator_ArchiveFailureIsNotFatal(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SaveRunErr = errors.New("disk full")
	o, _ := newOrchestrator(t, nil, repo, Options{})

	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, session.StatusDone, o.Progress().Status)
	assert.GreaterOrEqual(t, repo.SaveRunCalls, 2)
}

func TestOrchestrator_PauseAfterLastRecordHoldsCompletion(t *testing.T) {
	// Arrange
	repo := storage.NewMockRepository()
	var o *Orchestrator
	var once sync.Once
	paused := make(chan struct{})
	o, sess := newOrchestrator(t, nil, repo, Options{OnProgress: func(p session.Progress) {
		if p.Status == session.StatusRunning && p.Processed == p.Total {
			once.Do(func() {
				_, err := o.Pause()
				assert.NoError(t, err)
				close(paused)
			})
		}
	}})

	// Act
	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	<-paused
	time.Sleep(50 * time.Millisecond)

	// Assert
	held := o.Progress()
	assert.Equal(t, session.StatusPaused, held.Status)
	assert.Equal(t, held.Total, held.Processed)

	o.Resume()
	finished := make(chan struct{})
	go func() {
		o.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after resume")
	}

	final := o.Progress()
	assert.Equal(t, session.StatusDone, final.Status)
	assert.NotNil(t, final.CompletedAt)

	// The finished run releases the session for the next load.
	ledger, bank := fixtures()
	assert.NoError(t, sess.SetTransactions(ledger, bank))

	run, err := repo.GetRun(context.Background(), final.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", run.Status)
}

func TestOrchestrator_StopWhilePausedAtCompletion(t *testing.T) {
	var o *Orchestrator
	var once sync.Once
	paused := make(chan struct{})
	o, _ = newOrchestrator(t, nil, nil, Options{OnProgress: func(p session.Progress) {
		if p.Status == session.StatusRunning && p.Processed == p.Total {
			once.Do(func() {
				_, _ = o.Pause()
				close(paused)
			})
		}
	}})

	_, _, err := o.Start(matcher.DefaultConfig())
	require.NoError(t, err)
	<-paused

	_, err = o.Stop()
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, session.StatusStopped, o.Progress().Status)
}
