package indexer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"verifid/internal/audit"
	"verifid/internal/documents"
	docmemory "verifid/internal/documents/store/memory"
	"verifid/internal/extraction"
	"verifid/internal/preprocess"
	"verifid/internal/recognition"
	"verifid/internal/recognition/mocks"
	"verifid/internal/storage"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
	"verifid/pkg/requestcontext"
)

const testBucket = "documents"

var testImage = append([]byte{0xFF, 0xD8, 0xFF}, bytes.Repeat([]byte{0xAB}, 128)...)

type fixture struct {
	service    *Service
	documents  *docmemory.InMemoryStore
	objects    *storage.InMemoryStore
	recognizer *mocks.MockService
	auditStore *audit.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		documents:  docmemory.NewInMemoryStore(),
		objects:    storage.NewInMemoryStore(),
		recognizer: mocks.NewMockService(ctrl),
		auditStore: audit.NewInMemoryStore(),
	}
	f.service = NewService(
		f.documents, f.objects, f.recognizer, preprocess.NewGuard(), testBucket,
		WithAudit(audit.NewPublisher(f.auditStore)),
	)
	return f
}

func (f *fixture) putImage(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, f.objects.Put(context.Background(), testBucket, key, testImage, "image/jpeg"))
}

func TestIndexDocument_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1, Faces: []recognition.Face{{Confidence: 99.5}}}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123", Confidence: 99.5}, nil)

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, outcome.Status)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, id.FaceID("face-123"), outcome.Record.FaceID)
	assert.Equal(t, "DNI", outcome.Record.DocumentType)

	stored, err := f.documents.GetByStorageKey(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, outcome.Record.DocumentID, stored.DocumentID)

	events, err := f.auditStore.ListByDocument(ctx, "DNI", "12345678")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionDocumentIndexed, events[0].Action)
}

func TestIndexDocument_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	// Only one round of recognition calls for two invocations.
	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil).Times(1)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123"}, nil).Times(1)

	first, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	require.Equal(t, StatusIndexed, first.Status)

	second, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyIndexed, second.Status)
	assert.Equal(t, first.Record.DocumentID, second.Record.DocumentID)
}

func TestIndexDocument_NoFaceDetected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 0}, nil)

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusNoFaceDetected, outcome.Status)

	// Nothing was registered, nothing to store.
	_, err = f.documents.GetByStorageKey(ctx, "DNI-12345678.jpg")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestIndexDocument_MissingImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.IndexDocument(context.Background(), "DNI-00000000.jpg")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

// failingInsertStore wraps the memory store to fail the metadata write.
type failingInsertStore struct {
	documents.Store
	err error
}

func (s *failingInsertStore) Insert(context.Context, documents.DocumentRecord) error {
	return s.err
}

func TestIndexDocument_CompensatesOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.service.documents = &failingInsertStore{Store: f.documents, err: errors.New("connection reset")}
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123"}, nil)
	// The atomicity guarantee: the freshly registered face must be deleted.
	f.recognizer.EXPECT().DeleteFaces(gomock.Any(), []id.FaceID{"face-123"}).Return(nil)

	_, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRollbackFailed)
}

func TestIndexDocument_RollbackFailureIsEscalated(t *testing.T) {
	f := newFixture(t)
	f.service.documents = &failingInsertStore{Store: f.documents, err: errors.New("connection reset")}
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123"}, nil)
	f.recognizer.EXPECT().DeleteFaces(gomock.Any(), gomock.Any()).
		Return(errors.New("service unavailable"))

	_, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	assert.ErrorIs(t, err, ErrRollbackFailed)

	events, err := f.auditStore.ListByDocument(ctx, "DNI", "12345678")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRollbackFailed, events[0].Action)
}

func TestIndexDocument_ConflictLoserCompensatesAndYields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	// Winner's record appears between this writer's duplicate check and its
	// insert. Simulate by wrapping the store so the first lookup misses.
	winner := documents.DocumentRecord{
		DocumentID: id.NewDocumentID("DNI-12345678.jpg", time.Now()),
		FaceID:     "face-winner",
		StorageKey: "DNI-12345678.jpg",
		IndexedAt:  time.Now(),
	}
	f.service.documents = &racingStore{inner: f.documents, winner: winner}

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-loser"}, nil)
	f.recognizer.EXPECT().DeleteFaces(gomock.Any(), []id.FaceID{"face-loser"}).Return(nil)

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyIndexed, outcome.Status)
	assert.Equal(t, id.FaceID("face-winner"), outcome.Record.FaceID)
}

// racingStore misses the first duplicate check, rejects the insert, then
// serves the winning record.
type racingStore struct {
	inner    documents.Store
	winner   documents.DocumentRecord
	lookedUp bool
}

func (s *racingStore) Insert(context.Context, documents.DocumentRecord) error {
	return sentinel.ErrConflict
}

func (s *racingStore) GetByStorageKey(ctx context.Context, storageKey string) (*documents.DocumentRecord, error) {
	if !s.lookedUp {
		s.lookedUp = true
		return nil, sentinel.ErrNotFound
	}
	record := s.winner
	return &record, nil
}

func (s *racingStore) GetByFaceID(ctx context.Context, faceID id.FaceID) (*documents.DocumentRecord, error) {
	return s.inner.GetByFaceID(ctx, faceID)
}

func (s *racingStore) FindByNumber(ctx context.Context, documentType, documentNumber string) (*documents.DocumentRecord, error) {
	return s.inner.FindByNumber(ctx, documentType, documentNumber)
}

func (s *racingStore) Delete(ctx context.Context, documentID id.DocumentID) error {
	return s.inner.Delete(ctx, documentID)
}

func (s *racingStore) List(ctx context.Context) ([]documents.DocumentRecord, error) {
	return s.inner.List(ctx)
}

func TestIndexBucket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putImage(t, "DNI-11111111.jpg")
	f.putImage(t, "DNI-22222222.jpg")
	f.putImage(t, "DNI-33333333.jpg")

	// One key is already indexed.
	require.NoError(t, f.documents.Insert(ctx, documents.DocumentRecord{
		DocumentID: id.NewDocumentID("DNI-11111111.jpg", time.Now()),
		FaceID:     "face-existing",
		StorageKey: "DNI-11111111.jpg",
		IndexedAt:  time.Now(),
	}))

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil).Times(2)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []byte, externalID string) (recognition.IndexedFace, error) {
			return recognition.IndexedFace{FaceID: id.FaceID("face-" + externalID)}, nil
		}).Times(2)

	report, err := f.service.IndexBucket(ctx, BatchNewOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.AlreadyIndexed)
	assert.Empty(t, report.Failed)
}

func TestIsIndexed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	indexed, err := f.service.IsIndexed(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.False(t, indexed)

	require.NoError(t, f.documents.Insert(ctx, documents.DocumentRecord{
		DocumentID: id.NewDocumentID("DNI-12345678.jpg", time.Now()),
		FaceID:     "face-1",
		StorageKey: "DNI-12345678.jpg",
		IndexedAt:  time.Now(),
	}))

	indexed, err = f.service.IsIndexed(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.True(t, indexed)
}

type staticExtractor struct {
	fields []extraction.Field
	err    error
}

func (s staticExtractor) AnalyzeDocument(context.Context, []byte, []string) ([]extraction.Field, error) {
	return s.fields, s.err
}

func newCrossCheckFixture(t *testing.T, extractor extraction.Service) *fixture {
	t.Helper()
	f := newFixture(t)
	f.service = NewService(
		f.documents, f.objects, f.recognizer, preprocess.NewGuard(), testBucket,
		WithCrossCheck(extraction.NewCrossChecker(extractor, 80)),
	)
	return f
}

func TestIndexDocument_CrossCheckMismatch(t *testing.T) {
	f := newCrossCheckFixture(t, staticExtractor{
		fields: []extraction.Field{{Value: "99999999", Confidence: 95}},
	})
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusNumberMismatch, outcome.Status)

	_, err = f.documents.GetByStorageKey(ctx, "DNI-12345678.jpg")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestIndexDocument_CrossCheckMatchProceeds(t *testing.T) {
	f := newCrossCheckFixture(t, staticExtractor{
		fields: []extraction.Field{{Value: "12 345 678", Confidence: 95}},
	})
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123"}, nil)

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, outcome.Status)
}

func TestIndexDocument_CrossCheckOutageIsAdvisory(t *testing.T) {
	f := newCrossCheckFixture(t, staticExtractor{err: errors.New("extraction down")})
	ctx := context.Background()
	f.putImage(t, "DNI-12345678.jpg")

	f.recognizer.EXPECT().DetectFaces(gomock.Any(), gomock.Any()).
		Return(recognition.Detection{FaceCount: 1}, nil)
	f.recognizer.EXPECT().IndexFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(recognition.IndexedFace{FaceID: "face-123"}, nil)

	outcome, err := f.service.IndexDocument(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, outcome.Status)
}
