// Package documents holds the metadata for identity documents whose faces
// have been registered in the recognition collection.
package documents

import (
	"time"

	id "verifid/pkg/domain"
)

// DocumentRecord is one indexed identity document.
//
// Invariant: at most one record per StorageKey, and a face exists in the
// recognition collection iff a record exists here. Records are never mutated;
// they are created by the indexer and deleted only by administrative cleanup.
type DocumentRecord struct {
	DocumentID      id.DocumentID
	FaceID          id.FaceID
	StorageKey      string
	PersonName      string
	DocumentType    string
	ConfidenceScore float64
	IndexedAt       time.Time
}
