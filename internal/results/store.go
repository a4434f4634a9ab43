package results

import (
	"context"

	id "verifid/pkg/domain"
)

// Store persists ComparisonResults. Rows are write-once: implementations
// reject duplicate comparison ids and duplicate subject image keys with
// sentinel.ErrConflict. Expired rows are invisible to reads.
type Store interface {
	// Insert writes a new result row.
	Insert(ctx context.Context, result ComparisonResult) error

	// GetByComparisonID returns a single attempt's result, or
	// sentinel.ErrNotFound.
	GetByComparisonID(ctx context.Context, comparisonID id.ComparisonID) (*ComparisonResult, error)

	// GetBySubjectKey returns the result for one subject image key, or
	// sentinel.ErrNotFound.
	GetBySubjectKey(ctx context.Context, subjectImageKey string) (*ComparisonResult, error)

	// ListByDocumentNumber returns all attempts for a document, newest first.
	// An empty documentType matches any type.
	ListByDocumentNumber(ctx context.Context, documentType, documentNumber string) ([]ComparisonResult, error)

	// CountAttempts counts prior attempts for a document. Fallback source for
	// the attempt counter when the fast counter is unavailable.
	CountAttempts(ctx context.Context, documentType, documentNumber string) (int, error)
}
