// Package selector decides which ranked candidate, if any, a ledger
// transaction should be paired with.
//
// When a DecisionMaker is configured the choice is delegated to it under a
// timeout. Any failure, timeout or malformed answer falls back to a
// heuristic rule for that single decision, so a run never aborts because
// the decision service misbehaved.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
)

// MaxCandidates is the most candidates a DecisionMaker is shown.
const MaxCandidates = 5

const (
	heuristicThreshold = 0.5
	fallbackThreshold  = 0.6
	modelWeight        = 0.6
	heuristicWeight    = 0.4
)

// DefaultTimeout bounds a single DecisionMaker call.
const DefaultTimeout = 30 * time.Second

// ErrMalformedResponse is returned when a DecisionMaker answer cannot be used.
var ErrMalformedResponse = errors.New("malformed decision response")

// Request is the context handed to a DecisionMaker.
type Request struct {
	Ledger     txn.Transaction
	Candidates []matcher.MatchCandidate
	Config     matcher.Config
}

// Response is a DecisionMaker's answer.
// Selected is 1-based; 0 means no candidate matches.
type Response struct {
	Selected    int     `json:"selected_candidate"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// DecisionMaker picks among ranked candidates. Implementations must honor ctx.
type DecisionMaker interface {
	Decide(ctx context.Context, req Request) (Response, error)
}

// Decision is the selector's verdict. Index is 0-based, -1 for none.
type Decision struct {
	Index       int
	Explanation string
	Confidence  float64
	Fallback    bool
}

// Selected reports whether a candidate was chosen.
func (d Decision) Selected() bool {
	return d.Index >= 0
}

// Selector wraps an optional DecisionMaker with heuristic fallbacks.
type Selector struct {
	maker   DecisionMaker
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a selector. A nil maker selects heuristic-only mode; a
// non-positive timeout uses DefaultTimeout.
func New(maker DecisionMaker, timeout time.Duration, logger *slog.Logger) *Selector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		maker:   maker,
		timeout: timeout,
		logger:  logger,
	}
}

// Assisted reports whether a DecisionMaker is configured.
func (s *Selector) Assisted() bool {
	return s.maker != nil
}

// Select chooses among candidates, which must already be ranked best first.
func (s *Selector) Select(ctx context.Context, ledger txn.Transaction, candidates []matcher.MatchCandidate, cfg matcher.Config) Decision {
	if len(candidates) == 0 {
		return Decision{Index: -1, Explanation: "No candidates to evaluate"}
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	if s.maker == nil {
		return heuristicDecision(candidates)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.maker.Decide(callCtx, Request{
		Ledger:     ledger,
		Candidates: candidates,
		Config:     cfg,
	})
	if err == nil {
		err = validate(resp)
	}
	if err != nil {
		s.logger.Warn("decision service failed, using heuristic fallback",
			"ledger_id", ledger.ID,
			"candidates", len(candidates),
			"error", err)
		return fallbackDecision(candidates, err)
	}
	if resp.Explanation == "" {
		resp.Explanation = "No explanation provided"
	}

	if resp.Selected >= 1 && resp.Selected <= len(candidates) {
		idx := resp.Selected - 1
		return Decision{
			Index:       idx,
			Explanation: resp.Explanation,
			Confidence:  modelWeight*resp.Confidence + heuristicWeight*candidates[idx].Score,
		}
	}

	// No selection, or an index past the candidate list.
	return Decision{
		Index:       -1,
		Explanation: resp.Explanation,
		Confidence:  resp.Confidence,
	}
}

func validate(resp Response) error {
	if math.IsNaN(resp.Confidence) || resp.Confidence < 0 || resp.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrMalformedResponse, resp.Confidence)
	}
	if resp.Selected < 0 {
		return fmt.Errorf("%w: negative selection %d", ErrMalformedResponse, resp.Selected)
	}
	return nil
}

func heuristicDecision(candidates []matcher.MatchCandidate) Decision {
	if candidates[0].Score >= heuristicThreshold {
		return Decision{
			Index:       0,
			Explanation: "Best heuristic match selected (decision service unavailable)",
			Confidence:  candidates[0].Score,
			Fallback:    true,
		}
	}
	return Decision{
		Index:       -1,
		Explanation: "No confident match found (decision service unavailable)",
		Fallback:    true,
	}
}

func fallbackDecision(candidates []matcher.MatchCandidate, cause error) Decision {
	if candidates[0].Score >= fallbackThreshold {
		return Decision{
			Index:       0,
			Explanation: fmt.Sprintf("Best heuristic match (decision service error: %v)", cause),
			Confidence:  candidates[0].Score,
			Fallback:    true,
		}
	}
	return Decision{
		Index:       -1,
		Explanation: fmt.Sprintf("No confident match (decision service error: %v)", cause),
		Fallback:    true,
	}
}
