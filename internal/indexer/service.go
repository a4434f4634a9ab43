// Package indexer registers exactly one face per unique document image,
// keeping the recognition collection and the metadata store consistent.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"verifid/internal/audit"
	"verifid/internal/documents"
	"verifid/internal/extraction"
	"verifid/internal/platform/metrics"
	"verifid/internal/preprocess"
	"verifid/internal/recognition"
	"verifid/internal/storage"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
	"verifid/pkg/requestcontext"
)

// OutcomeStatus is the expected-branch result of an indexing attempt.
// Genuine faults (storage, recognition transport, rollback failure) travel as
// errors instead.
type OutcomeStatus string

const (
	StatusIndexed        OutcomeStatus = "INDEXED"
	StatusAlreadyIndexed OutcomeStatus = "ALREADY_INDEXED"
	StatusNoFaceDetected OutcomeStatus = "NO_FACE_DETECTED"

	// StatusNumberMismatch means the text extraction cross-check read a
	// different document number off the image than the storage key claims.
	StatusNumberMismatch OutcomeStatus = "DOCUMENT_NUMBER_MISMATCH"
)

// Outcome reports what happened to one storage key.
type Outcome struct {
	Status    OutcomeStatus
	Record    *documents.DocumentRecord
	FaceCount int
}

// ErrRollbackFailed marks a compensating delete that did not go through: the
// recognition collection now holds a face with no metadata row. Escalated,
// never retried automatically.
var ErrRollbackFailed = errors.New("indexing rollback failed: collection and metadata store diverged")

// Service implements the document indexing transaction.
type Service struct {
	documents    documents.Store
	objects      storage.ObjectStore
	recognizer   recognition.Service
	preprocessor preprocess.Preprocessor
	crosscheck   *extraction.CrossChecker

	documentsBucket string

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
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

// WithCrossCheck enables the text extraction cross-check: the document number
// claimed by the storage key must match what is printed on the image.
func WithCrossCheck(checker *extraction.CrossChecker) Option {
	return func(s *Service) {
		s.crosscheck = checker
	}
}

func NewService(
	documentStore documents.Store,
	objects storage.ObjectStore,
	recognizer recognition.Service,
	preprocessor preprocess.Preprocessor,
	documentsBucket string,
	opts ...Option,
) *Service {
	s := &Service{
		documents:       documentStore,
		objects:         objects,
		recognizer:      recognizer,
		preprocessor:    preprocessor,
		documentsBucket: documentsBucket,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IndexDocument registers the face on the document image stored under
// storageKey. Idempotent: re-indexing an already-indexed key short-circuits
// without touching the recognition service.
//
// The forward action (IndexFace) and the metadata write are made to appear
// transactional through compensation: if the write fails for any reason,
// including losing the insert race to a concurrent indexer, the freshly
// created face is deleted from the collection before returning.
func (s *Service) IndexDocument(ctx context.Context, storageKey string) (Outcome, error) {
	if existing, err := s.documents.GetByStorageKey(ctx, storageKey); err == nil {
		s.logger.Debug("document already indexed", "storage_key", storageKey, "face_id", existing.FaceID)
		return Outcome{Status: StatusAlreadyIndexed, Record: existing}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Outcome{}, fmt.Errorf("check existing record: %w", err)
	}

	image, err := s.objects.Get(ctx, s.documentsBucket, storageKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch document image %s: %w", storageKey, err)
	}

	image, err = s.preprocessor.Process(ctx, image, storageKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("preprocess document image: %w", err)
	}

	if s.crosscheck != nil {
		claimed := documentNumberFromKey(storageKey)
		match, err := s.crosscheck.Verify(ctx, image, claimed)
		if err != nil {
			// The cross-check is advisory; an extraction outage must not
			// block indexing.
			s.logger.Warn("document number cross-check unavailable",
				"storage_key", storageKey, "error", err)
		} else if !match {
			s.logger.Warn("document number cross-check mismatch",
				"storage_key", storageKey, "claimed_number", claimed)
			return Outcome{Status: StatusNumberMismatch}, nil
		}
	}

	detection, err := s.recognizer.DetectFaces(ctx, image)
	if err != nil {
		if errors.Is(err, sentinel.ErrNoFace) {
			return Outcome{Status: StatusNoFaceDetected}, nil
		}
		return Outcome{}, fmt.Errorf("detect faces: %w", err)
	}
	if detection.FaceCount == 0 {
		return Outcome{Status: StatusNoFaceDetected}, nil
	}
	if detection.FaceCount > 1 {
		s.logger.Warn("document image contains multiple faces, indexing the primary one",
			"storage_key", storageKey, "face_count", detection.FaceCount)
	}

	now := requestcontext.Now(ctx)
	documentID := id.NewDocumentID(storageKey, now)

	indexed, err := s.recognizer.IndexFace(ctx, image, documentID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNoFace) {
			return Outcome{Status: StatusNoFaceDetected, FaceCount: detection.FaceCount}, nil
		}
		return Outcome{}, fmt.Errorf("index face: %w", err)
	}

	documentType, personName := deriveMeta(storageKey)
	record := documents.DocumentRecord{
		DocumentID:      documentID,
		FaceID:          indexed.FaceID,
		StorageKey:      storageKey,
		PersonName:      personName,
		DocumentType:    documentType,
		ConfidenceScore: indexed.Confidence,
		IndexedAt:       now,
	}

	if err := s.documents.Insert(ctx, record); err != nil {
		return s.compensate(ctx, record, err)
	}

	if s.metrics != nil {
		s.metrics.DocumentsIndexed.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionDocumentIndexed,
		DocumentType:   documentType,
		DocumentNumber: documentNumberFromKey(storageKey),
		Outcome:        string(StatusIndexed),
		Detail:         "face " + indexed.FaceID.String(),
	})
	s.logger.Info("document indexed",
		"storage_key", storageKey, "document_id", documentID, "face_id", indexed.FaceID)

	return Outcome{Status: StatusIndexed, Record: &record, FaceCount: detection.FaceCount}, nil
}

// compensate deletes the face that was registered before the metadata write
// failed. A lost insert race resolves to ALREADY_INDEXED once the face is
// cleaned up; an unremovable face is the one state this system cannot repair
// on its own.
func (s *Service) compensate(ctx context.Context, record documents.DocumentRecord, insertErr error) (Outcome, error) {
	deleteErr := s.recognizer.DeleteFaces(ctx, []id.FaceID{record.FaceID})
	if deleteErr != nil {
		if s.metrics != nil {
			s.metrics.RollbackFailures.Inc()
		}
		s.emit(ctx, audit.Event{
			Action:         audit.ActionRollbackFailed,
			DocumentType:   record.DocumentType,
			DocumentNumber: documentNumberFromKey(record.StorageKey),
			Outcome:        "ROLLBACK_FAILED",
			Detail:         deleteErr.Error(),
		})
		s.logger.Error("CRITICAL: failed to roll back face registration, manual reconciliation required",
			"storage_key", record.StorageKey, "face_id", record.FaceID,
			"insert_error", insertErr, "delete_error", deleteErr)
		return Outcome{}, fmt.Errorf("%w: face %s: %v", ErrRollbackFailed, record.FaceID, deleteErr)
	}

	if s.metrics != nil {
		s.metrics.IndexRollbacks.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionIndexRolledBack,
		DocumentType:   record.DocumentType,
		DocumentNumber: documentNumberFromKey(record.StorageKey),
		Detail:         insertErr.Error(),
	})

	if errors.Is(insertErr, sentinel.ErrConflict) {
		// Lost the race: the winner's record is authoritative.
		existing, err := s.documents.GetByStorageKey(ctx, record.StorageKey)
		if err != nil {
			return Outcome{}, fmt.Errorf("fetch winning record after conflict: %w", err)
		}
		s.logger.Info("concurrent indexing resolved, kept winning record",
			"storage_key", record.StorageKey, "face_id", existing.FaceID)
		return Outcome{Status: StatusAlreadyIndexed, Record: existing}, nil
	}

	return Outcome{}, fmt.Errorf("persist document record: %w", insertErr)
}

// IsIndexed reports whether a storage key already has a metadata record.
func (s *Service) IsIndexed(ctx context.Context, storageKey string) (bool, error) {
	_, err := s.documents.GetByStorageKey(ctx, storageKey)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// BatchMode selects which bucket objects a batch run touches.
type BatchMode string

const (
	// BatchAll re-processes every object; already-indexed keys short-circuit.
	BatchAll BatchMode = "all"

	// BatchNewOnly skips keys that already have a record, avoiding the
	// per-key existence round-trip inside IndexDocument.
	BatchNewOnly BatchMode = "new-only"
)

// BatchReport summarizes one batch indexing run.
type BatchReport struct {
	Processed      int      `json:"processed"`
	Indexed        int      `json:"indexed"`
	AlreadyIndexed int      `json:"already_indexed"`
	NoFace         int      `json:"no_face"`
	Mismatched     int      `json:"mismatched"`
	Failed         []string `json:"failed,omitempty"`
}

// IndexBucket walks the documents bucket and indexes according to mode.
// Per-key failures are collected, not fatal: one unreadable image must not
// abort a backfill.
func (s *Service) IndexBucket(ctx context.Context, mode BatchMode) (BatchReport, error) {
	keys, err := s.objects.List(ctx, s.documentsBucket, "")
	if err != nil {
		return BatchReport{}, fmt.Errorf("list documents bucket: %w", err)
	}

	var report BatchReport
	for _, key := range keys {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		if mode == BatchNewOnly {
			indexed, err := s.IsIndexed(ctx, key)
			if err != nil {
				report.Failed = append(report.Failed, key)
				continue
			}
			if indexed {
				report.AlreadyIndexed++
				continue
			}
		}

		report.Processed++
		outcome, err := s.IndexDocument(ctx, key)
		if err != nil {
			s.logger.Warn("batch indexing failed for key", "storage_key", key, "error", err)
			report.Failed = append(report.Failed, key)
			continue
		}
		switch outcome.Status {
		case StatusIndexed:
			report.Indexed++
		case StatusAlreadyIndexed:
			report.AlreadyIndexed++
		case StatusNoFaceDetected:
			report.NoFace++
		case StatusNumberMismatch:
			report.Mismatched++
		}
	}
	return report, nil
}

// IndexKeys indexes an explicit list of storage keys, with the same per-key
// failure handling as IndexBucket.
func (s *Service) IndexKeys(ctx context.Context, keys []string) (BatchReport, error) {
	var report BatchReport
	for _, key := range keys {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Processed++
		outcome, err := s.IndexDocument(ctx, key)
		if err != nil {
			s.logger.Warn("batch indexing failed for key", "storage_key", key, "error", err)
			report.Failed = append(report.Failed, key)
			continue
		}
		switch outcome.Status {
		case StatusIndexed:
			report.Indexed++
		case StatusAlreadyIndexed:
			report.AlreadyIndexed++
		case StatusNoFaceDetected:
			report.NoFace++
		case StatusNumberMismatch:
			report.Mismatched++
		}
	}
	return report, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("failed to emit audit event", "action", event.Action, "error", err)
	}
}

// deriveMeta extracts the document type and a display name from a storage key
// like DNI-12345678.jpg.
func deriveMeta(storageKey string) (documentType, personName string) {
	base := storageKey
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	personName = base
	if i := strings.IndexByte(base, '-'); i > 0 {
		documentType = strings.ToUpper(base[:i])
	}
	return documentType, personName
}

func documentNumberFromKey(storageKey string) string {
	base := storageKey
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if i := strings.IndexByte(base, '-'); i > 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return ""
}
