package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verifid/internal/indexer"
	"verifid/internal/storage"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/platform/httputil"
	"verifid/pkg/requestcontext"
)

// Indexer is the slice of the indexing service the handler consumes.
type Indexer interface {
	IndexDocument(ctx context.Context, storageKey string) (indexer.Outcome, error)
	IsIndexed(ctx context.Context, storageKey string) (bool, error)
}

// Handler wires document endpoints to the indexing service.
type Handler struct {
	indexer Indexer
	objects storage.ObjectStore
	logger  *slog.Logger

	documentsBucket string
	subjectsBucket  string
	presignExpiry   time.Duration
}

func New(idx Indexer, objects storage.ObjectStore, logger *slog.Logger, documentsBucket, subjectsBucket string, presignExpiry time.Duration) *Handler {
	return &Handler{
		indexer:         idx,
		objects:         objects,
		logger:          logger,
		documentsBucket: documentsBucket,
		subjectsBucket:  subjectsBucket,
		presignExpiry:   presignExpiry,
	}
}

// Register mounts document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/index", h.HandleIndex)
	r.Get("/documents/{storageKey}/exists", h.HandleExists)
	r.Post("/uploads/presign", h.HandlePresign)
}

type indexRequest struct {
	StorageKey string `json:"storage_key"`
}

type indexResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id,omitempty"`
	FaceID     string `json:"face_id,omitempty"`
	FaceCount  int    `json:"face_count,omitempty"`
}

// HandleIndex handles POST /documents/index requests.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[indexRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.StorageKey == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "storage_key is required"))
		return
	}

	outcome, err := h.indexer.IndexDocument(ctx, req.StorageKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "document indexing failed",
			"request_id", requestID,
			"storage_key", req.StorageKey,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "indexing failed"))
		return
	}

	resp := indexResponse{Status: string(outcome.Status), FaceCount: outcome.FaceCount}
	if outcome.Record != nil {
		resp.DocumentID = outcome.Record.DocumentID.String()
		resp.FaceID = outcome.Record.FaceID.String()
	}

	status := http.StatusCreated
	switch outcome.Status {
	case indexer.StatusAlreadyIndexed:
		status = http.StatusOK
	case indexer.StatusNoFaceDetected, indexer.StatusNumberMismatch:
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, resp)
}

// HandleExists handles GET /documents/{storageKey}/exists requests. It
// reports both the stored object and the index record, since the two diverge
// during the indexing window.
func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storageKey := chi.URLParam(r, "storageKey")

	stored, err := h.objects.Exists(ctx, h.documentsBucket, storageKey)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "storage check failed"))
		return
	}
	indexed, err := h.indexer.IsIndexed(ctx, storageKey)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "index check failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"storage_key": storageKey,
		"stored":      stored,
		"indexed":     indexed,
	})
}

type presignRequest struct {
	Kind string `json:"kind"` // "document" or "subject"
	Key  string `json:"key"`
}

// HandlePresign handles POST /uploads/presign requests, issuing a direct
// upload URL so image bytes never transit this service.
func (h *Handler) HandlePresign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[presignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Key == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "key is required"))
		return
	}

	var bucket string
	switch req.Kind {
	case "document":
		bucket = h.documentsBucket
	case "subject":
		bucket = h.subjectsBucket
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "kind must be document or subject"))
		return
	}

	url, err := h.objects.PresignPut(ctx, bucket, req.Key, h.presignExpiry)
	if err != nil {
		h.logger.ErrorContext(ctx, "presign failed",
			"request_id", requestID,
			"bucket", bucket,
			"key", req.Key,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "presign failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(h.presignExpiry.Seconds()),
	})
}
