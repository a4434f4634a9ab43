package documents

import (
	"context"

	id "verifid/pkg/domain"
)

// Store persists DocumentRecords. Implementations must enforce the one-record
// per-storage-key invariant at write time: Insert is the serialization point
// for concurrent indexing of the same document.
type Store interface {
	// Insert writes a new record, failing with sentinel.ErrConflict when a
	// record for the same storage key already exists (insert-if-absent).
	Insert(ctx context.Context, record DocumentRecord) error

	// GetByStorageKey returns the record for a storage key, or
	// sentinel.ErrNotFound.
	GetByStorageKey(ctx context.Context, storageKey string) (*DocumentRecord, error)

	// GetByFaceID returns the record owning a collection face, or
	// sentinel.ErrNotFound.
	GetByFaceID(ctx context.Context, faceID id.FaceID) (*DocumentRecord, error)

	// FindByNumber locates a record by document type and number substring of
	// its storage key (the returning-user lookup).
	FindByNumber(ctx context.Context, documentType, documentNumber string) (*DocumentRecord, error)

	// Delete removes a record by document id. Administrative use only.
	Delete(ctx context.Context, documentID id.DocumentID) error

	// List enumerates all records for reconciliation.
	List(ctx context.Context) ([]DocumentRecord, error)
}
