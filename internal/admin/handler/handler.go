package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verifid/internal/admin"
	"verifid/internal/audit"
	"verifid/internal/indexer"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/platform/httputil"
	"verifid/pkg/platform/sentinel"
	"verifid/pkg/requestcontext"
)

// Service is the slice of the admin service the handler consumes.
type Service interface {
	FindOrphans(ctx context.Context) (admin.OrphanReport, error)
	Reconcile(ctx context.Context) (admin.ReconcileResult, error)
	DeleteDocument(ctx context.Context, documentID id.DocumentID) error
}

// BatchIndexer runs indexing backfills, bucket-wide or for explicit keys.
type BatchIndexer interface {
	IndexBucket(ctx context.Context, mode indexer.BatchMode) (indexer.BatchReport, error)
	IndexKeys(ctx context.Context, keys []string) (indexer.BatchReport, error)
}

// Handler exposes reconciliation and backfill tooling to operators.
type Handler struct {
	service Service
	batch   BatchIndexer
	trail   *audit.Publisher
	logger  *slog.Logger
}

func New(service Service, batch BatchIndexer, trail *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{service: service, batch: batch, trail: trail, logger: logger}
}

// Register mounts admin endpoints on the router. Callers are expected to
// guard the subtree with an operator token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/orphans", h.HandleOrphans)
	r.Delete("/orphans", h.HandleReconcile)
	r.Post("/index/batch", h.HandleBatchIndex)
	r.Get("/audit", h.HandleAudit)
	r.Delete("/documents/{documentID}", h.HandleDeleteDocument)
}

// HandleOrphans handles GET /admin/orphans requests.
func (h *Handler) HandleOrphans(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.FindOrphans(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "orphan scan failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleReconcile handles DELETE /admin/orphans requests, removing orphans on
// both sides of the collection/metadata divide.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Reconcile(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "reconciliation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "reconciliation failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type batchIndexRequest struct {
	Mode string `json:"mode"`

	// Keys, when set, indexes exactly those objects and ignores Mode.
	Keys []string `json:"keys,omitempty"`
}

// HandleBatchIndex handles POST /admin/index/batch requests.
func (h *Handler) HandleBatchIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[batchIndexRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if len(req.Keys) > 0 {
		report, err := h.batch.IndexKeys(ctx, req.Keys)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "batch indexing failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
		return
	}

	var mode indexer.BatchMode
	switch req.Mode {
	case "", string(indexer.BatchNewOnly):
		mode = indexer.BatchNewOnly
	case string(indexer.BatchAll):
		mode = indexer.BatchAll
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "mode must be all or new-only"))
		return
	}

	report, err := h.batch.IndexBucket(ctx, mode)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch indexing failed",
			"request_id", requestID,
			"mode", mode,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "batch indexing failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleAudit handles GET /admin/audit requests, listing the trail for one
// document.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	documentType := r.URL.Query().Get("document_type")
	documentNumber := r.URL.Query().Get("document_number")
	if documentNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document_number is required"))
		return
	}

	events, err := h.trail.List(r.Context(), documentType, documentNumber)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit lookup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleDeleteDocument handles DELETE /admin/documents/{documentID} requests.
func (h *Handler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID := id.DocumentID(chi.URLParam(r, "documentID"))

	if err := h.service.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "document deletion failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
