package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/export"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// ExportHandler serves downloads and archives the audit trail.
type ExportHandler struct {
	*Base
	session *session.Session
	repo    storage.Repository
	logger  *slog.Logger
	now     func() time.Time
}

// NewExportHandler creates a new export handler. repo may be nil, which disables archiving.
func NewExportHandler(sess *session.Session, repo storage.Repository, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{
		Base:    &Base{},
		session: sess,
		repo:    repo,
		logger:  logger,
		now:     time.Now,
	}
}

// Matches handles GET /api/export/matches.csv.
func (h *ExportHandler) Matches(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.writeCSV(w, "confirmed_matches.csv", func(buf *bytes.Buffer) error {
		return export.WriteMatchesCSV(buf, snap.Confirmed)
	})
}

// UnmatchedLedger handles GET /api/export/unmatched-ledger.csv.
func (h *ExportHandler) UnmatchedLedger(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.writeCSV(w, "unmatched_ledger.csv", func(buf *bytes.Buffer) error {
		return export.WriteTransactionsCSV(buf, snap.UnmatchedLedger)
	})
}

// UnmatchedBank handles GET /api/export/unmatched-bank.csv.
func (h *ExportHandler) UnmatchedBank(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.writeCSV(w, "unmatched_bank.csv", func(buf *bytes.Buffer) error {
		return export.WriteTransactionsCSV(buf, snap.UnmatchedBank)
	})
}

// AuditCSV handles GET /api/export/audit.csv.
func (h *ExportHandler) AuditCSV(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.writeCSV(w, "audit_trail.csv", func(buf *bytes.Buffer) error {
		return export.WriteAuditCSV(buf, snap.Audit)
	})
}

// AuditJSON handles GET /api/export/audit.json - the summary plus every decision.
func (h *ExportHandler) AuditJSON(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	doc := export.AuditDocument{
		Note:      export.IDNote,
		Summary:   export.NewSummary(snap.Stats, len(snap.UnmatchedLedger), len(snap.UnmatchedBank), h.now()),
		Decisions: snap.Audit,
	}
	w.Header().Set("Content-Disposition", "attachment; filename=audit_trail.json")
	h.WriteJSON(w, http.StatusOK, doc)
}

// Summary handles GET /api/export/summary.
func (h *ExportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.WriteJSON(w, http.StatusOK, export.NewSummary(snap.Stats, len(snap.UnmatchedLedger), len(snap.UnmatchedBank), h.now()))
}

// Archive handles POST /api/export/archive - snapshots the audit trail and current run into storage.
func (h *ExportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.WriteError(w, http.StatusServiceUnavailable, dto.UnavailableError("archive storage is not configured"))
		return
	}

	snap := h.session.Snapshot()
	p := snap.Progress
	if p.RunID != "" {
		record := &storage.RunRecord{
			ID:          p.RunID,
			Status:      string(p.Status),
			CompletedAt: p.CompletedAt,
			Total:       p.Total,
			Processed:   p.Processed,
			Matched:     p.Matched,
			Unmatched:   p.Unmatched,
			Config:      p.Config,
			Error:       p.Error,
		}
		if p.StartedAt != nil {
			record.StartedAt = *p.StartedAt
		}
		if err := h.repo.SaveRun(r.Context(), record); err != nil {
			h.logger.Error("failed to archive run", "run_id", p.RunID, "error", err)
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
	}

	archived, err := h.repo.SaveAuditEntries(r.Context(), p.RunID, snap.Audit)
	if err != nil {
		h.logger.Error("failed to archive audit trail", "run_id", p.RunID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ArchiveResponse{
		RunID:    p.RunID,
		Archived: archived,
		Total:    len(snap.Audit),
	})
}

// writeCSV renders into a buffer first so a failure can still produce an error response.
func (h *ExportHandler) writeCSV(w http.ResponseWriter, filename string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.logger.Error("failed to render export", "file", filename, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
