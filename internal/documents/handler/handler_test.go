package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifid/internal/documents"
	"verifid/internal/indexer"
	"verifid/internal/storage"
	id "verifid/pkg/domain"
	"verifid/pkg/testutil"
)

type fakeIndexer struct {
	outcome indexer.Outcome
	err     error
	indexed bool
	lastKey string
}

func (f *fakeIndexer) IndexDocument(_ context.Context, storageKey string) (indexer.Outcome, error) {
	f.lastKey = storageKey
	return f.outcome, f.err
}

func (f *fakeIndexer) IsIndexed(context.Context, string) (bool, error) {
	return f.indexed, nil
}

func newRouter(idx Indexer, objects storage.ObjectStore) http.Handler {
	r := chi.NewRouter()
	New(idx, objects, slog.New(slog.DiscardHandler), "documents", "subject-photos", 15*time.Minute).Register(r)
	return r
}

func TestHandleIndex(t *testing.T) {
	idx := &fakeIndexer{outcome: indexer.Outcome{
		Status: indexer.StatusIndexed,
		Record: &documents.DocumentRecord{
			DocumentID: id.DocumentID("doc-1"),
			FaceID:     id.FaceID("face-1"),
			StorageKey: "DNI-12345678.jpg",
		},
		FaceCount: 1,
	}}
	router := newRouter(idx, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/index",
		map[string]string{"storage_key": "DNI-12345678.jpg"})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "DNI-12345678.jpg", idx.lastKey)
	assert.Contains(t, rr.Body.String(), "face-1")
}

func TestHandleIndex_Duplicate(t *testing.T) {
	idx := &fakeIndexer{outcome: indexer.Outcome{Status: indexer.StatusAlreadyIndexed}}
	router := newRouter(idx, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/index",
		map[string]string{"storage_key": "DNI-12345678.jpg"})
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleIndex_NoFace(t *testing.T) {
	idx := &fakeIndexer{outcome: indexer.Outcome{Status: indexer.StatusNoFaceDetected}}
	router := newRouter(idx, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/index",
		map[string]string{"storage_key": "DNI-12345678.jpg"})
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleIndex_MissingKey(t *testing.T) {
	router := newRouter(&fakeIndexer{}, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/index", map[string]string{})
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleIndex_ServiceError(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("collection unreachable")}
	router := newRouter(idx, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/index",
		map[string]string{"storage_key": "DNI-12345678.jpg"})
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	// Infrastructure detail never leaks to the caller.
	assert.NotContains(t, rr.Body.String(), "collection unreachable")
}

func TestHandleExists(t *testing.T) {
	objects := storage.NewInMemoryStore()
	require.NoError(t, objects.Put(context.Background(), "documents", "DNI-12345678.jpg", []byte("img"), "image/jpeg"))
	router := newRouter(&fakeIndexer{indexed: true}, objects)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/documents/DNI-12345678.jpg/exists"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"stored":true`)
	assert.Contains(t, rr.Body.String(), `"indexed":true`)
}

func TestHandlePresign(t *testing.T) {
	router := newRouter(&fakeIndexer{}, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/uploads/presign",
		map[string]string{"kind": "subject", "key": "DNI-12345678-user-20250101120000-attempt-1.jpg"})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "url")
}

func TestHandlePresign_RejectsUnknownKind(t *testing.T) {
	router := newRouter(&fakeIndexer{}, storage.NewInMemoryStore())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/uploads/presign",
		map[string]string{"kind": "backup", "key": "x.jpg"})
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
