package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// RunsHandler serves archived match runs and audit records.
type RunsHandler struct {
	*Base
	repo storage.Repository
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: &Base{},
		repo: repo,
	}
}

// List handles GET /api/runs - returns archived runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", dto.DefaultRunListParams().Limit)

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}

	h.WriteJSON(w, http.StatusOK, dto.RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /api/runs/{id} - returns a single archived run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && run == nil) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("match run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, run)
}

// Audit handles GET /api/runs/audit - archived audit records, filterable by ledger_id and action.
func (h *RunsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	filters := storage.AuditFilters{
		LedgerID: r.URL.Query().Get("ledger_id"),
		Action:   r.URL.Query().Get("action"),
		Limit:    ParseIntParam(r, "limit", 0),
	}

	records, err := h.repo.ListAuditEntries(r.Context(), filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if records == nil {
		records = []storage.AuditRecord{}
	}

	h.WriteJSON(w, http.StatusOK, dto.ArchivedAuditResponse{Records: records, Count: len(records)})
}
