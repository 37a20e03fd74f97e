package handlers

import (
	"net/http"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
)

// ExceptionsHandler serves the transactions that still need attention.
type ExceptionsHandler struct {
	*Base
	session  *session.Session
	defaults matcher.Config
	minScore float64
}

// NewExceptionsHandler creates a new exceptions handler.
func NewExceptionsHandler(sess *session.Session, defaults matcher.Config, minScore float64) *ExceptionsHandler {
	return &ExceptionsHandler{
		Base:     &Base{},
		session:  sess,
		defaults: defaults,
		minScore: minScore,
	}
}

// UnmatchedLedger handles GET /api/exceptions/unmatched-ledger.
// The response includes the last run's unmatched results with their explanations.
func (h *ExceptionsHandler) UnmatchedLedger(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: snap.UnmatchedLedger,
		Count:        len(snap.UnmatchedLedger),
		Results:      snap.RunUnmatched,
	})
}

// UnmatchedBank handles GET /api/exceptions/unmatched-bank.
func (h *ExceptionsHandler) UnmatchedBank(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: snap.UnmatchedBank,
		Count:        len(snap.UnmatchedBank),
	})
}

// Confirmed handles GET /api/exceptions/confirmed.
func (h *ExceptionsHandler) Confirmed(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, dto.DecisionListResponse{Decisions: snap.Confirmed, Count: len(snap.Confirmed)})
}

// Rejected handles GET /api/exceptions/rejected.
func (h *ExceptionsHandler) Rejected(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, dto.DecisionListResponse{Decisions: snap.Rejected, Count: len(snap.Rejected)})
}

// Excluded handles GET /api/exceptions/excluded.
func (h *ExceptionsHandler) Excluded(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, dto.ExclusionListResponse{Exclusions: snap.Excluded, Count: len(snap.Excluded)})
}

// Rerun handles POST /api/exceptions/rerun.
func (h *ExceptionsHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	req := dto.RerunRequest{Config: h.defaults}
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	minScore := h.minScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if minScore < 0 || minScore > 1 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("min_score must be within [0, 1]"))
		return
	}

	added, err := h.session.Rerun(req.Config, minScore)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RerunResponse{Added: added, Stats: h.session.Stats()})
}
