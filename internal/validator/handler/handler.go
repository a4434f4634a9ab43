package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verifid/internal/results"
	"verifid/internal/validator"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/platform/httputil"
	"verifid/pkg/requestcontext"
)

// Service is the slice of the validation service the handler consumes.
type Service interface {
	ValidateStoredSubject(ctx context.Context, subjectKey string) (results.ComparisonResult, error)
	ValidateImage(ctx context.Context, subjectKey string, image []byte) (results.ComparisonResult, error)
	ResultByComparisonID(ctx context.Context, comparisonID id.ComparisonID) (*results.ComparisonResult, error)
	LatestByDocumentNumber(ctx context.Context, documentType, documentNumber string) (*results.ComparisonResult, error)
	CreateLivenessSession(ctx context.Context, documentType, documentNumber string) (validator.LivenessSession, error)
	CompleteLivenessSession(ctx context.Context, token string) (results.ComparisonResult, error)
}

// Handler exposes the validation pipeline over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts validation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/validations", h.HandleValidate)
	r.Get("/validations/id/{comparisonID}", h.HandleGetByComparisonID)
	r.Get("/validations/{documentNumber}", h.HandleLatest)
	r.Post("/liveness/sessions", h.HandleCreateLivenessSession)
	r.Post("/liveness/sessions/complete", h.HandleCompleteLivenessSession)
}

type validateRequest struct {
	SubjectKey string `json:"subject_key"`

	// ImageBase64 carries the subject image inline. When empty the image is
	// read from the subjects bucket under SubjectKey.
	ImageBase64 string `json:"image_base64,omitempty"`
}

// HandleValidate handles POST /validations requests. The pipeline reports
// domain failures inside the result row rather than as transport errors, so
// almost every outcome is a 200 here.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[validateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.SubjectKey == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "subject_key is required"))
		return
	}

	var (
		result results.ComparisonResult
		err    error
	)
	if req.ImageBase64 != "" {
		image, decodeErr := base64.StdEncoding.DecodeString(req.ImageBase64)
		if decodeErr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "image_base64 is not valid base64"))
			return
		}
		result, err = h.service.ValidateImage(ctx, req.SubjectKey, image)
	} else {
		result, err = h.service.ValidateStoredSubject(ctx, req.SubjectKey)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "validation failed before a result could be recorded",
			"request_id", requestID,
			"subject_key", req.SubjectKey,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGetByComparisonID handles GET /validations/id/{comparisonID} requests.
func (h *Handler) HandleGetByComparisonID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comparisonID := id.ComparisonID(chi.URLParam(r, "comparisonID"))

	result, err := h.service.ResultByComparisonID(ctx, comparisonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleLatest handles GET /validations/{documentNumber} requests, returning
// the newest unexpired result for the document. An optional document_type
// query narrows the lookup.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentType := r.URL.Query().Get("document_type")
	documentNumber := chi.URLParam(r, "documentNumber")

	result, err := h.service.LatestByDocumentNumber(ctx, documentType, documentNumber)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type createSessionRequest struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

// HandleCreateLivenessSession handles POST /liveness/sessions requests.
func (h *Handler) HandleCreateLivenessSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.DocumentType == "" || req.DocumentNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document_type and document_number are required"))
		return
	}

	session, err := h.service.CreateLivenessSession(ctx, req.DocumentType, req.DocumentNumber)
	if err != nil {
		h.logger.ErrorContext(ctx, "liveness session creation failed",
			"request_id", requestID,
			"document_type", req.DocumentType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

type completeSessionRequest struct {
	Token string `json:"token"`
}

// HandleCompleteLivenessSession handles POST /liveness/sessions/complete
// requests.
func (h *Handler) HandleCompleteLivenessSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[completeSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token is required"))
		return
	}

	result, err := h.service.CompleteLivenessSession(ctx, req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
