package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifid/internal/documents"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

func record(key string) documents.DocumentRecord {
	return documents.DocumentRecord{
		DocumentID:      id.NewDocumentID(key, time.Now()),
		FaceID:          id.FaceID("face-" + key),
		StorageKey:      key,
		PersonName:      "Test Person",
		DocumentType:    "DNI",
		ConfidenceScore: 99.0,
		IndexedAt:       time.Now(),
	}
}

func TestInMemoryStore_InsertIsConditional(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first := record("DNI-12345678.jpg")
	require.NoError(t, store.Insert(ctx, first))

	// A second writer for the same storage key must lose, regardless of its
	// generated document id.
	second := record("DNI-12345678.jpg")
	err := store.Insert(ctx, second)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := store.GetByStorageKey(ctx, "DNI-12345678.jpg")
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, got.DocumentID)
}

func TestInMemoryStore_Lookups(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rec := record("DNI-12345678.jpg")
	require.NoError(t, store.Insert(ctx, rec))

	t.Run("by storage key", func(t *testing.T) {
		got, err := store.GetByStorageKey(ctx, rec.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, rec.FaceID, got.FaceID)
	})

	t.Run("by face id", func(t *testing.T) {
		got, err := store.GetByFaceID(ctx, rec.FaceID)
		require.NoError(t, err)
		assert.Equal(t, rec.StorageKey, got.StorageKey)
	})

	t.Run("by document number", func(t *testing.T) {
		got, err := store.FindByNumber(ctx, "DNI", "12345678")
		require.NoError(t, err)
		assert.Equal(t, rec.DocumentID, got.DocumentID)
	})

	t.Run("missing records return ErrNotFound", func(t *testing.T) {
		_, err := store.GetByStorageKey(ctx, "PASSPORT-000.jpg")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = store.FindByNumber(ctx, "DNI", "00000000")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rec := record("DNI-12345678.jpg")
	require.NoError(t, store.Insert(ctx, rec))
	require.NoError(t, store.Delete(ctx, rec.DocumentID))

	_, err := store.GetByStorageKey(ctx, rec.StorageKey)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// Deleting again reports the record is gone.
	assert.ErrorIs(t, store.Delete(ctx, rec.DocumentID), sentinel.ErrNotFound)
}
