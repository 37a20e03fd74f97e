// Package llm adapts hosted language models to the selector's DecisionMaker.
//
// A Decider renders the candidates into a prompt, waits on a rate limiter,
// calls its Completer and parses the JSON answer. Identical prompts are
// answered from an in-memory cache so re-runs do not pay twice.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
)

// ErrUnavailable is returned when a provider is configured without credentials.
var ErrUnavailable = errors.New("decision service unavailable")

// Completer sends a prompt to a model and returns its raw text reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// DeciderOptions tunes throttling and caching. Zero values use defaults.
type DeciderOptions struct {
	RequestsPerMinute int
	CacheTTL          time.Duration
}

// Decider implements selector.DecisionMaker on top of a Completer.
type Decider struct {
	completer Completer
	limiter   *rate.Limiter
	cache     *cache.Cache
	logger    *slog.Logger
}

var _ selector.DecisionMaker = (*Decider)(nil)

// NewDecider wraps a completer with rate limiting and a response cache.
func NewDecider(completer Completer, opts DeciderOptions, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Decider{
		completer: completer,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		cache:     cache.New(ttl, 2*ttl),
		logger:    logger.With("system", "llm", "provider", completer.Name()),
	}
}

// Decide asks the model to pick among the candidates.
func (d *Decider) Decide(ctx context.Context, req selector.Request) (selector.Response, error) {
	prompt := BuildPrompt(req)
	key := cacheKey(prompt)

	if cached, found := d.cache.Get(key); found {
		d.logger.Debug("decision cache hit", "ledger_id", req.Ledger.ID)
		return cached.(selector.Response), nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return selector.Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	text, err := d.completer.Complete(ctx, prompt)
	if err != nil {
		return selector.Response{}, err
	}

	resp, err := ParseResponse(text)
	if err != nil {
		return selector.Response{}, err
	}

	d.logger.Debug("decision received",
		"ledger_id", req.Ledger.ID,
		"selected", resp.Selected,
		"confidence", resp.Confidence,
		"duration", time.Since(start))

	d.cache.SetDefault(key, resp)
	return resp, nil
}

// CacheSize reports how many decisions are memoized
func (d *Decider) CacheSize() int {
	return d.cache.ItemCount()
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
