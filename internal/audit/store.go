package audit

import (
	"context"
	"sync"
)

// Store is an append-only sink for audit events. An empty documentType in
// ListByDocument matches any type.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDocument(ctx context.Context, documentType, documentNumber string) ([]Event, error)
}

// InMemoryStore keeps events in a slice. Production deployments replace this
// with a durable sink; the trail is advisory, not load-bearing.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentType, documentNumber string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if (documentType == "" || e.DocumentType == documentType) && e.DocumentNumber == documentNumber {
			out = append(out, e)
		}
	}
	return out, nil
}
