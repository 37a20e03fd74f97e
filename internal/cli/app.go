package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/eshaffer321/ledger-reconcile/internal/application/matching"
	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/llm"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// App is the wired set of services shared by the serve and match commands.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Session      *session.Session
	Selector     *selector.Selector
	Orchestrator *matching.Orchestrator
	Repo         storage.Repository // nil when archiving is disabled

	closers []io.Closer
}

// BuildApp wires storage, the decision service and the matching services from cfg.
// onProgress may be nil.
func BuildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, onProgress func(session.Progress)) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	var runs storage.RunRepository
	if cfg.Storage.ArchivePath != "" {
		store, err := storage.NewStorage(cfg.Storage.ArchivePath)
		if err != nil {
			return nil, err
		}
		app.Repo = store
		app.closers = append(app.closers, store)
		runs = store
	}

	maker, closer, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		// A missing key degrades to heuristic-only matching instead of failing startup
		if !errors.Is(err, llm.ErrUnavailable) {
			_ = app.Close()
			return nil, err
		}
		logger.Warn("decision service disabled, using heuristics only", "error", err)
		maker = nil
	}
	app.closers = append(app.closers, closer)

	app.Selector = selector.New(maker, cfg.Decision.Timeout, logger.With("system", "selector"))
	app.Session = session.New(logger.With("system", "review"))
	app.Orchestrator = matching.NewOrchestrator(app.Session, app.Selector, runs, logger.With("system", "matching"), matching.Options{
		TopK:       cfg.Matching.TopK,
		OnProgress: onProgress,
	})

	logger.Info("services ready",
		"assisted", app.Selector.Assisted(),
		"provider", cfg.Decision.Provider,
		"archive", cfg.Storage.ArchivePath != "")
	return app, nil
}

// Close releases storage and decision service clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
