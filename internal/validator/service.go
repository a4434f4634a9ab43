// Package validator drives the face validation pipeline: subject
// identification, companion document lookup, face detection, strategy
// selection, tier classification, conditional indexing, and unconditional
// result persistence.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"verifid/internal/audit"
	"verifid/internal/documents"
	"verifid/internal/indexer"
	"verifid/internal/jwttoken"
	"verifid/internal/platform/config"
	"verifid/internal/platform/metrics"
	"verifid/internal/preprocess"
	"verifid/internal/recognition"
	"verifid/internal/results"
	"verifid/internal/retry"
	"verifid/internal/storage"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/platform/sentinel"
	"verifid/pkg/requestcontext"
)

// Indexer is the slice of the document indexer the validator consumes.
type Indexer interface {
	IndexDocument(ctx context.Context, storageKey string) (indexer.Outcome, error)
	IsIndexed(ctx context.Context, storageKey string) (bool, error)
}

// Deps are the collaborators the pipeline is built from.
type Deps struct {
	Recognizer   recognition.Service
	Objects      storage.ObjectStore
	Documents    documents.Store
	Results      results.Store
	Retries      *retry.Controller
	Indexer      Indexer
	Preprocessor preprocess.Preprocessor
	Tokens       *jwttoken.JWTService
}

// Config carries the pipeline's tunables.
type Config struct {
	DocumentsBucket string
	SubjectsBucket  string
	Thresholds      config.Thresholds
	ResultsTTL      time.Duration
	SessionExpiry   time.Duration
}

// Service is the face validation state machine.
type Service struct {
	recognizer   recognition.Service
	objects      storage.ObjectStore
	documents    documents.Store
	results      results.Store
	retries      *retry.Controller
	indexer      Indexer
	preprocessor preprocess.Preprocessor
	tokens       *jwttoken.JWTService

	documentsBucket string
	subjectsBucket  string
	thresholds      config.Thresholds
	resultsTTL      time.Duration
	sessionExpiry   time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func NewService(deps Deps, cfg Config, opts ...Option) *Service {
	s := &Service{
		recognizer:      deps.Recognizer,
		objects:         deps.Objects,
		documents:       deps.Documents,
		results:         deps.Results,
		retries:         deps.Retries,
		indexer:         deps.Indexer,
		preprocessor:    deps.Preprocessor,
		tokens:          deps.Tokens,
		documentsBucket: cfg.DocumentsBucket,
		subjectsBucket:  cfg.SubjectsBucket,
		thresholds:      cfg.Thresholds,
		resultsTTL:      cfg.ResultsTTL,
		sessionExpiry:   cfg.SessionExpiry,
		logger:          slog.Default(),
		tracer:          otel.Tracer("verifid/validator"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ValidateStoredSubject processes a subject photo already sitting in the
// subjects bucket (the upload-event entry path).
func (s *Service) ValidateStoredSubject(ctx context.Context, subjectKey string) (results.ComparisonResult, error) {
	image, err := s.objects.Get(ctx, s.subjectsBucket, subjectKey)
	if err != nil {
		return results.ComparisonResult{}, fmt.Errorf("fetch subject image %s: %w", subjectKey, err)
	}
	return s.ValidateImage(ctx, subjectKey, image)
}

// ValidateImage runs the full pipeline for one subject photo. It always
// persists a ComparisonResult, including for malformed keys and for panics in
// the pipeline: a validation attempt is never silently dropped.
//
// Re-processing the same subject key returns the previously persisted result
// without re-running the pipeline.
func (s *Service) ValidateImage(ctx context.Context, subjectKey string, image []byte) (result results.ComparisonResult, err error) {
	if prior, priorErr := s.results.GetBySubjectKey(ctx, subjectKey); priorErr == nil {
		s.logger.Debug("subject key already processed, returning stored result",
			"subject_key", subjectKey, "comparison_id", prior.ComparisonID)
		return *prior, nil
	}

	now := requestcontext.Now(ctx)
	result = s.skeleton(subjectKey, now)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("validation pipeline panicked", "subject_key", subjectKey, "panic", r)
			result.Status = results.StatusSystemError
			result.ErrorType = results.ErrorSystem
			result.ErrorDetail = fmt.Sprintf("internal failure: %v", r)
			result.AllowRetry = true
			result, err = s.persist(ctx, result)
		}
	}()

	subject, parseErr := id.ParseSubjectKey(subjectKey)
	if parseErr != nil {
		result.Status = results.StatusInvalidFilename
		result.ErrorType = results.ErrorInvalidFilename
		result.ErrorDetail = parseErr.Error()
		result.AllowRetry = false
		return s.persist(ctx, result)
	}

	result = s.run(ctx, subject, result, image)
	return s.persist(ctx, result)
}

// run executes the pipeline stages after subject identification. It returns a
// fully populated result; persistence happens in the caller.
func (s *Service) run(ctx context.Context, subject id.SubjectRef, result results.ComparisonResult, image []byte) results.ComparisonResult {
	ctx, span := s.tracer.Start(ctx, "validator.run", trace.WithAttributes(
		attribute.String("document.type", subject.DocumentType),
		attribute.Int("attempt.encoded", subject.Attempt),
	))
	defer span.End()

	result.DocumentType = subject.DocumentType
	result.DocumentNumber = subject.DocumentNumber

	attempt, err := s.retries.RecordAttempt(ctx, subject)
	if err != nil {
		return s.fail(ctx, result, results.StatusSystemError, results.ErrorStorage, err.Error(), subject, 1)
	}
	result.AttemptNumber = attempt

	// Locate the companion document.
	documentKey := subject.DocumentKey()
	exists, err := s.objects.Exists(ctx, s.documentsBucket, documentKey)
	if err != nil {
		return s.fail(ctx, result, results.StatusSystemError, results.ErrorStorage, err.Error(), subject, attempt)
	}
	if !exists {
		return s.fail(ctx, result, results.StatusDocumentNotFound, results.ErrorDocumentNotFound,
			"no document stored under "+documentKey, subject, attempt)
	}

	// Preprocess and detect a face in the subject photo.
	image, err = s.preprocessor.Process(ctx, image, result.SubjectImageKey)
	if err != nil {
		return s.fail(ctx, result, results.StatusNoFaceDetected, results.ErrorPreprocessingFailed, err.Error(), subject, attempt)
	}
	detection, err := s.recognizer.DetectFaces(ctx, image)
	if err != nil {
		if errors.Is(err, sentinel.ErrNoFace) {
			return s.fail(ctx, result, results.StatusNoFaceDetected, results.ErrorNoFaceDetected,
				"no face found in subject photo", subject, attempt)
		}
		return s.fail(ctx, result, results.StatusNoFaceDetected, results.ErrorDetectionFailed, err.Error(), subject, attempt)
	}
	if detection.FaceCount == 0 {
		return s.fail(ctx, result, results.StatusNoFaceDetected, results.ErrorNoFaceDetected,
			"no face found in subject photo", subject, attempt)
	}

	// Strategy selection: search the collection when the document's face is
	// in it, pairwise compare when it is not.
	indexed, err := s.indexer.IsIndexed(ctx, documentKey)
	if err != nil {
		return s.fail(ctx, result, results.StatusSystemError, results.ErrorStorage, err.Error(), subject, attempt)
	}

	var cmp comparison
	if indexed {
		cmp, err = s.compareHybrid(ctx, image, documentKey)
	} else {
		cmp, err = s.compareDirect(ctx, image, documentKey)
	}
	if err != nil {
		return s.fail(ctx, result, results.StatusComparisonError, results.ErrorComparisonFailed, err.Error(), subject, attempt)
	}
	result.Strategy = cmp.Strategy
	result.ConfidenceScore = cmp.Similarity
	span.SetAttributes(
		attribute.String("comparison.strategy", cmp.Strategy),
		attribute.Float64("comparison.similarity", cmp.Similarity),
	)

	t := classify(cmp.Similarity, s.thresholds)
	result.Status = t.Status
	result.ErrorType = t.ErrorType

	if t.Status.IsVerified() {
		result.AllowRetry = false
		result.MatchedDocumentKey = cmp.MatchedKey
		result.PersonName = cmp.MatchedPerson
		result.DocumentIndexed = s.indexAfterPass(ctx, documentKey, indexed)
		// A freshly indexed companion document gains its metadata record only
		// during indexAfterPass, so the name is resolved after it.
		if result.PersonName == "" {
			if record, err := s.documents.GetByStorageKey(ctx, documentKey); err == nil {
				result.PersonName = record.PersonName
			}
		}
		s.retries.OnVerified(ctx, subject)
		return result
	}

	result.AllowRetry = t.AllowRetry && s.retries.ShouldAllowRetry(attempt, t.ErrorType)
	if !result.AllowRetry && t.ErrorType.Retryable() {
		s.exhaust(ctx, subject)
	}
	return result
}

// indexAfterPass registers the companion document after a confirmed match.
// An indexing failure never downgrades the verification outcome; it is
// recorded and retried on the next event.
func (s *Service) indexAfterPass(ctx context.Context, documentKey string, alreadyIndexed bool) bool {
	if alreadyIndexed {
		return true
	}
	outcome, err := s.indexer.IndexDocument(ctx, documentKey)
	if err != nil {
		s.logger.Error("post-verification indexing failed",
			"document_key", documentKey, "error", err)
		return false
	}
	return outcome.Status == indexer.StatusIndexed || outcome.Status == indexer.StatusAlreadyIndexed
}

func (s *Service) fail(ctx context.Context, result results.ComparisonResult, status results.Status, errType results.ErrorType, detail string, subject id.SubjectRef, attempt int) results.ComparisonResult {
	result.AttemptNumber = attempt
	result.Status = status
	result.ErrorType = errType
	result.ErrorDetail = detail
	result.AllowRetry = errType.Retryable() && s.retries.ShouldAllowRetry(attempt, errType)
	if !result.AllowRetry && errType.Retryable() {
		s.exhaust(ctx, subject)
	}
	return result
}

// exhaust handles hitting the attempt limit: storage cleanup for never
// indexed documents plus an audit trail entry.
func (s *Service) exhaust(ctx context.Context, subject id.SubjectRef) {
	if err := s.retries.OnExhausted(ctx, subject); err != nil {
		s.logger.Error("exhaustion cleanup failed",
			"attempt_key", subject.AttemptKey(), "error", err)
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionAttemptsExhausted,
		DocumentType:   subject.DocumentType,
		DocumentNumber: subject.DocumentNumber,
	})
}

// persist writes the result row, resolving concurrent duplicate processing of
// the same subject key in favor of the first writer.
func (s *Service) persist(ctx context.Context, result results.ComparisonResult) (results.ComparisonResult, error) {
	err := s.results.Insert(ctx, result)
	if errors.Is(err, sentinel.ErrConflict) {
		prior, getErr := s.results.GetBySubjectKey(ctx, result.SubjectImageKey)
		if getErr != nil {
			return result, fmt.Errorf("fetch winning result after conflict: %w", getErr)
		}
		return *prior, nil
	}
	if err != nil {
		s.logger.Error("failed to persist comparison result",
			"comparison_id", result.ComparisonID, "error", err)
		return result, fmt.Errorf("persist comparison result: %w", err)
	}

	s.observe(ctx, result)
	return result, nil
}

func (s *Service) observe(ctx context.Context, result results.ComparisonResult) {
	if s.metrics != nil {
		s.metrics.ValidationsTotal.WithLabelValues(string(result.Status)).Inc()
		s.metrics.ValidationDuration.Observe(time.Since(result.Timestamp).Seconds())
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionValidationResult,
		DocumentType:   result.DocumentType,
		DocumentNumber: result.DocumentNumber,
		SubjectKey:     result.SubjectImageKey,
		ComparisonID:   result.ComparisonID.String(),
		Outcome:        string(result.Status),
		Detail:         result.MatchedDocumentKey,
	})
	s.logger.Info("validation attempt completed",
		"comparison_id", result.ComparisonID,
		"subject_key", result.SubjectImageKey,
		"status", result.Status,
		"similarity", result.ConfidenceScore,
		"attempt", result.AttemptNumber,
		"allow_retry", result.AllowRetry,
	)
}

func (s *Service) skeleton(subjectKey string, now time.Time) results.ComparisonResult {
	return results.ComparisonResult{
		ComparisonID:    id.NewComparisonID(now),
		Timestamp:       now,
		SubjectImageKey: subjectKey,
		AttemptNumber:   1,
		ExpiresAt:       now.Add(s.resultsTTL),
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("failed to emit audit event", "action", event.Action, "error", err)
	}
}

// ResultByComparisonID is the status lookup for one attempt.
func (s *Service) ResultByComparisonID(ctx context.Context, comparisonID id.ComparisonID) (*results.ComparisonResult, error) {
	result, err := s.results.GetByComparisonID(ctx, comparisonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no result for comparison id")
		}
		return nil, err
	}
	return result, nil
}

// LatestByDocumentNumber is the status lookup for a document's most recent
// attempt.
func (s *Service) LatestByDocumentNumber(ctx context.Context, documentType, documentNumber string) (*results.ComparisonResult, error) {
	rows, err := s.results.ListByDocumentNumber(ctx, documentType, documentNumber)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no validation attempts for document")
	}
	return &rows[0], nil
}
