// Package admin implements the reconciliation tooling for the one invariant
// that cannot be enforced inline: a face exists in the recognition collection
// iff a metadata record exists for it. Rollback failures and operator
// mistakes break it; this package finds and repairs the damage.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"verifid/internal/audit"
	"verifid/internal/documents"
	"verifid/internal/platform/metrics"
	"verifid/internal/recognition"
	"verifid/internal/storage"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// OrphanReport lists both directions of collection/metadata divergence.
type OrphanReport struct {
	// OrphanFaces are collection faces with no metadata record, typically
	// left behind by a failed rollback.
	OrphanFaces []id.FaceID `json:"orphan_faces"`

	// OrphanRecords are metadata records whose face is gone from the
	// collection.
	OrphanRecords []id.DocumentID `json:"orphan_records"`

	CollectionSize int `json:"collection_size"`
	RecordCount    int `json:"record_count"`
}

// Clean reports whether the two stores agree.
func (r OrphanReport) Clean() bool {
	return len(r.OrphanFaces) == 0 && len(r.OrphanRecords) == 0
}

// Service performs administrative reconciliation and cleanup.
type Service struct {
	recognizer recognition.Service
	documents  documents.Store
	objects    storage.ObjectStore

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

func NewService(
	recognizer recognition.Service,
	documentStore documents.Store,
	objects storage.ObjectStore,
	documentsBucket string,
	opts ...Option,
) *Service {
	s := &Service{
		recognizer:      recognizer,
		documents:       documentStore,
		objects:         objects,
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

// FindOrphans cross-references the collection against the metadata store in
// both directions without changing anything.
func (s *Service) FindOrphans(ctx context.Context) (OrphanReport, error) {
	faces, err := s.recognizer.ListFaces(ctx)
	if err != nil {
		return OrphanReport{}, fmt.Errorf("list collection faces: %w", err)
	}
	records, err := s.documents.List(ctx)
	if err != nil {
		return OrphanReport{}, fmt.Errorf("list document records: %w", err)
	}

	known := make(map[id.FaceID]struct{}, len(records))
	for _, record := range records {
		known[record.FaceID] = struct{}{}
	}
	inCollection := make(map[id.FaceID]struct{}, len(faces))
	for _, face := range faces {
		inCollection[face.FaceID] = struct{}{}
	}

	report := OrphanReport{
		CollectionSize: len(faces),
		RecordCount:    len(records),
	}
	for _, face := range faces {
		if _, ok := known[face.FaceID]; !ok {
			report.OrphanFaces = append(report.OrphanFaces, face.FaceID)
		}
	}
	for _, record := range records {
		if _, ok := inCollection[record.FaceID]; !ok {
			report.OrphanRecords = append(report.OrphanRecords, record.DocumentID)
		}
	}
	return report, nil
}

// ReconcileResult summarizes one repair run.
type ReconcileResult struct {
	Report         OrphanReport `json:"report"`
	FacesDeleted   int          `json:"faces_deleted"`
	RecordsDeleted int          `json:"records_deleted"`
}

// Reconcile removes orphans on both sides. Orphan faces are deleted from the
// collection; orphan records are deleted from the metadata store.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	report, err := s.FindOrphans(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	result := ReconcileResult{Report: report}

	if len(report.OrphanFaces) > 0 {
		if err := s.recognizer.DeleteFaces(ctx, report.OrphanFaces); err != nil {
			return result, fmt.Errorf("delete orphan faces: %w", err)
		}
		result.FacesDeleted = len(report.OrphanFaces)
	}

	for _, documentID := range report.OrphanRecords {
		if err := s.documents.Delete(ctx, documentID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return result, fmt.Errorf("delete orphan record %s: %w", documentID, err)
		}
		result.RecordsDeleted++
	}

	if s.metrics != nil {
		s.metrics.OrphansDeleted.Add(float64(result.FacesDeleted + result.RecordsDeleted))
	}
	if result.FacesDeleted > 0 || result.RecordsDeleted > 0 {
		s.emit(ctx, audit.Event{
			Action: audit.ActionOrphanDeleted,
			Detail: fmt.Sprintf("%d faces, %d records", result.FacesDeleted, result.RecordsDeleted),
		})
		s.logger.Info("reconciliation removed orphans",
			"faces_deleted", result.FacesDeleted, "records_deleted", result.RecordsDeleted)
	}
	return result, nil
}

// DeleteDocument removes one indexed identity end to end: the collection
// face, the metadata record, and the stored image.
func (s *Service) DeleteDocument(ctx context.Context, documentID id.DocumentID) error {
	records, err := s.documents.List(ctx)
	if err != nil {
		return fmt.Errorf("list document records: %w", err)
	}
	var target *documents.DocumentRecord
	for i := range records {
		if records[i].DocumentID == documentID {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return sentinel.ErrNotFound
	}

	if err := s.recognizer.DeleteFaces(ctx, []id.FaceID{target.FaceID}); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("delete collection face: %w", err)
	}
	if err := s.documents.Delete(ctx, documentID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("delete document record: %w", err)
	}
	if err := s.objects.Delete(ctx, s.documentsBucket, target.StorageKey); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("delete document image: %w", err)
	}

	s.emit(ctx, audit.Event{
		Action:       audit.ActionOrphanDeleted,
		DocumentType: target.DocumentType,
		Detail:       "document " + documentID.String() + " removed by operator",
	})
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("failed to emit audit event", "action", event.Action, "error", err)
	}
}
