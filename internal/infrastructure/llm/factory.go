package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig builds the configured DecisionMaker. Provider "none" returns a nil
// maker, which puts the selector in heuristic-only mode. The returned closer is never nil.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (selector.DecisionMaker, io.Closer, error) {
	dc := cfg.Decision
	opts := DeciderOptions{
		RequestsPerMinute: dc.RequestsPerMinute,
		CacheTTL:          dc.CacheTTL,
	}

	switch dc.Provider {
	case "", config.ProviderNone:
		return nil, nopCloser{}, nil
	case config.ProviderOpenAI:
		key := cfg.DecisionAPIKey()
		if key == "" {
			return nil, nopCloser{}, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrUnavailable)
		}
		return NewDecider(NewOpenAIClient(key, dc.Model, dc.BaseURL), opts, logger), nopCloser{}, nil
	case config.ProviderGemini:
		key := cfg.DecisionAPIKey()
		if key == "" {
			return nil, nopCloser{}, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrUnavailable)
		}
		client, err := NewGeminiClient(ctx, key, dc.Model)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return NewDecider(client, opts, logger), client, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown decision provider %q", dc.Provider)
	}
}
