package handlers

import (
	"net/http"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/matching"
	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
)

// MatchHandler handles the matching run and the review queue.
type MatchHandler struct {
	*Base
	session      *session.Session
	orchestrator *matching.Orchestrator
	defaults     matcher.Config
	now          func() time.Time
}

// NewMatchHandler creates a new match handler. defaults fill config fields a request leaves out.
func NewMatchHandler(sess *session.Session, orch *matching.Orchestrator, defaults matcher.Config) *MatchHandler {
	return &MatchHandler{
		Base:         &Base{},
		session:      sess,
		orchestrator: orch,
		defaults:     defaults,
		now:          time.Now,
	}
}

// SetTransactions handles POST /api/match/set-transactions.
func (h *MatchHandler) SetTransactions(w http.ResponseWriter, r *http.Request) {
	var req dto.SetTransactionsRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	if err := h.session.SetTransactions(req.Ledger, req.Bank); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.SetTransactionsResponse{
		LedgerCount: len(req.Ledger),
		BankCount:   len(req.Bank),
	})
}

// Run handles POST /api/match/run - starts a run, or reports the active one.
func (h *MatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	req := dto.RunRequest{Config: h.defaults}
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	progress, started, err := h.orchestrator.Start(req.Config)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	h.WriteJSON(w, status, dto.RunResponse{
		Started:  started,
		Progress: dto.NewProgressResponse(progress, h.now()),
	})
}

// Status handles GET /api/match/status.
func (h *MatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeProgress(w, h.orchestrator.Progress())
}

// Pause handles POST /api/match/pause.
func (h *MatchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	progress, err := h.orchestrator.Pause()
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.writeProgress(w, progress)
}

// Resume handles POST /api/match/resume. Resuming a run that is not paused is a no-op.
func (h *MatchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.writeProgress(w, h.orchestrator.Resume())
}

// Stop handles POST /api/match/stop.
func (h *MatchHandler) Stop(w http.ResponseWriter, r *http.Request) {
	progress, err := h.orchestrator.Stop()
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.writeProgress(w, progress)
}

func (h *MatchHandler) writeProgress(w http.ResponseWriter, p session.Progress) {
	h.WriteJSON(w, http.StatusOK, dto.NewProgressResponse(p, h.now()))
}

// Next handles GET /api/match/next - the result at the review cursor.
func (h *MatchHandler) Next(w http.ResponseWriter, r *http.Request) {
	result, index, ok := h.session.Next()
	_, total := h.session.Cursor()

	response := dto.NextResponse{Done: !ok, Index: index, Total: total}
	if ok {
		response.Result = &result
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Seek handles POST /api/match/seek.
func (h *MatchHandler) Seek(w http.ResponseWriter, r *http.Request) {
	var req dto.SeekRequest
	if err := DecodeJSON(r, &req); err != nil || req.Index == nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("index is required"))
		return
	}

	if err := h.session.Seek(*req.Index); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.Next(w, r)
}

// Action handles POST /api/match/action.
func (h *MatchHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req dto.ActionRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.Action == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("action is required"))
		return
	}

	result, err := h.session.Act(req.Action, req.Notes)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	cursor, _ := h.session.Cursor()
	h.WriteJSON(w, http.StatusOK, dto.ActionResponse{
		Action: req.Action,
		Result: result,
		Cursor: cursor,
		Stats:  h.session.Stats(),
	})
}

// Pending handles GET /api/match/pending.
func (h *MatchHandler) Pending(w http.ResponseWriter, r *http.Request) {
	items := h.session.PendingSnapshot()
	h.WriteJSON(w, http.StatusOK, dto.PendingResponse{Items: items, Count: len(items)})
}

// Stats handles GET /api/match/stats.
func (h *MatchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.session.Stats()
	h.WriteJSON(w, http.StatusOK, dto.StatsResponse{Stats: stats, MatchRate: stats.MatchRate()})
}

// Audit handles GET /api/match/audit.
func (h *MatchHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries := h.session.Audit()
	h.WriteJSON(w, http.StatusOK, dto.AuditResponse{Entries: entries, Count: len(entries)})
}

// RejectConfirmed handles POST /api/match/confirmed/reject.
func (h *MatchHandler) RejectConfirmed(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, h.session.RejectApproved)
}

// RestoreRejected handles POST /api/match/rejected/restore.
func (h *MatchHandler) RestoreRejected(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, h.session.RestoreRejected)
}

// ApproveRejected handles POST /api/match/rejected/approve.
func (h *MatchHandler) ApproveRejected(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, h.session.ApproveRejected)
}

func (h *MatchHandler) pairAction(w http.ResponseWriter, r *http.Request, apply func(ledgerID, bankID string) error) {
	var req dto.PairRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.LedgerID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("ledger_id is required"))
		return
	}

	if err := apply(req.LedgerID, req.BankID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	stats := h.session.Stats()
	h.WriteJSON(w, http.StatusOK, dto.StatsResponse{Stats: stats, MatchRate: stats.MatchRate()})
}
