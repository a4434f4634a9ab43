package memory

import (
	"context"
	"strings"
	"sync"

	"verifid/internal/documents"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// InMemoryStore keeps document records in maps guarded by a mutex, enforcing
// the same conditional-insert semantics as the PostgreSQL store.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.DocumentID]documents.DocumentRecord
	byKey    map[string]id.DocumentID
	byFaceID map[id.FaceID]id.DocumentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.DocumentID]documents.DocumentRecord),
		byKey:    make(map[string]id.DocumentID),
		byFaceID: make(map[id.FaceID]id.DocumentID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, record documents.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[record.StorageKey]; exists {
		return sentinel.ErrConflict
	}
	s.byID[record.DocumentID] = record
	s.byKey[record.StorageKey] = record.DocumentID
	s.byFaceID[record.FaceID] = record.DocumentID
	return nil
}

func (s *InMemoryStore) GetByStorageKey(_ context.Context, storageKey string) (*documents.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.byKey[storageKey]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.byID[docID]
	return &record, nil
}

func (s *InMemoryStore) GetByFaceID(_ context.Context, faceID id.FaceID) (*documents.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.byFaceID[faceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.byID[docID]
	return &record, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, documentType, documentNumber string) (*documents.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.byID {
		if record.DocumentType == documentType && strings.Contains(record.StorageKey, documentNumber) {
			found := record
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Delete(_ context.Context, documentID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, documentID)
	delete(s.byKey, record.StorageKey)
	delete(s.byFaceID, record.FaceID)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]documents.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]documents.DocumentRecord, 0, len(s.byID))
	for _, record := range s.byID {
		records = append(records, record)
	}
	return records, nil
}
