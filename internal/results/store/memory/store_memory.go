package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"verifid/internal/results"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// InMemoryStore keeps comparison results in maps guarded by a mutex. Expired
// rows are filtered on read, mirroring the TTL behavior of the PostgreSQL
// store.
type InMemoryStore struct {
	mu           sync.RWMutex
	byID         map[id.ComparisonID]results.ComparisonResult
	bySubjectKey map[string]id.ComparisonID

	now func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:         make(map[id.ComparisonID]results.ComparisonResult),
		bySubjectKey: make(map[string]id.ComparisonID),
		now:          time.Now,
	}
}

// WithClock overrides the expiry clock. Test use only.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Insert(_ context.Context, result results.ComparisonResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[result.ComparisonID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.bySubjectKey[result.SubjectImageKey]; exists {
		return sentinel.ErrConflict
	}
	s.byID[result.ComparisonID] = result
	s.bySubjectKey[result.SubjectImageKey] = result.ComparisonID
	return nil
}

func (s *InMemoryStore) GetByComparisonID(_ context.Context, comparisonID id.ComparisonID) (*results.ComparisonResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.byID[comparisonID]
	if !ok || result.Expired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	return &result, nil
}

func (s *InMemoryStore) GetBySubjectKey(_ context.Context, subjectImageKey string) (*results.ComparisonResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comparisonID, ok := s.bySubjectKey[subjectImageKey]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	result := s.byID[comparisonID]
	if result.Expired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	return &result, nil
}

func (s *InMemoryStore) ListByDocumentNumber(_ context.Context, documentType, documentNumber string) ([]results.ComparisonResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []results.ComparisonResult
	for _, result := range s.byID {
		if (documentType == "" || result.DocumentType == documentType) &&
			result.DocumentNumber == documentNumber && !result.Expired(now) {
			out = append(out, result)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryStore) CountAttempts(ctx context.Context, documentType, documentNumber string) (int, error) {
	rows, err := s.ListByDocumentNumber(ctx, documentType, documentNumber)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
