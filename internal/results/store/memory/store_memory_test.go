package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifid/internal/results"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

func result(subjectKey string, attempt int, at time.Time) results.ComparisonResult {
	return results.ComparisonResult{
		ComparisonID:    id.NewComparisonID(at),
		Timestamp:       at,
		SubjectImageKey: subjectKey,
		DocumentType:    "DNI",
		DocumentNumber:  "12345678",
		AttemptNumber:   attempt,
		Status:          results.StatusNoMatchFound,
		ConfidenceScore: 42.0,
		AllowRetry:      true,
		ExpiresAt:       at.Add(365 * 24 * time.Hour),
	}
}

func TestInMemoryStore_WriteOnce(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first := result("DNI-12345678-user-20240101-attempt-1.jpg", 1, time.Now())
	require.NoError(t, store.Insert(ctx, first))

	// Same subject key must not produce a second row.
	dup := result("DNI-12345678-user-20240101-attempt-1.jpg", 1, time.Now().Add(time.Second))
	assert.ErrorIs(t, store.Insert(ctx, dup), sentinel.ErrConflict)

	// Same comparison id must not be reused either.
	other := result("DNI-12345678-user-20240101-attempt-2.jpg", 2, time.Now())
	other.ComparisonID = first.ComparisonID
	assert.ErrorIs(t, store.Insert(ctx, other), sentinel.ErrConflict)
}

func TestInMemoryStore_Lookups(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	base := time.Now()
	first := result("DNI-12345678-user-20240101-attempt-1.jpg", 1, base)
	second := result("DNI-12345678-user-20240102-attempt-2.jpg", 2, base.Add(time.Hour))
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	t.Run("by comparison id", func(t *testing.T) {
		got, err := store.GetByComparisonID(ctx, first.ComparisonID)
		require.NoError(t, err)
		assert.Equal(t, first.SubjectImageKey, got.SubjectImageKey)
	})

	t.Run("by subject key", func(t *testing.T) {
		got, err := store.GetBySubjectKey(ctx, second.SubjectImageKey)
		require.NoError(t, err)
		assert.Equal(t, 2, got.AttemptNumber)
	})

	t.Run("by document number, newest first", func(t *testing.T) {
		got, err := store.ListByDocumentNumber(ctx, "DNI", "12345678")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 2, got[0].AttemptNumber)
		assert.Equal(t, 1, got[1].AttemptNumber)
	})

	t.Run("attempt count", func(t *testing.T) {
		count, err := store.CountAttempts(ctx, "DNI", "12345678")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := store.GetBySubjectKey(ctx, "PASSPORT-000-user-x-attempt-1.jpg")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStore_ExpiredRowsAreInvisible(t *testing.T) {
	now := time.Now()
	store := NewInMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	rec := result("DNI-12345678-user-20240101-attempt-1.jpg", 1, now)
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByComparisonID(ctx, rec.ComparisonID)
	require.NoError(t, err)
	assert.False(t, got.Expired(now))

	// Advance past the retention window.
	now = now.Add(366 * 24 * time.Hour)

	_, err = store.GetByComparisonID(ctx, rec.ComparisonID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	count, err := store.CountAttempts(ctx, "DNI", "12345678")
	require.NoError(t, err)
	assert.Zero(t, count)
}
