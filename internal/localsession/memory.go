package localsession

import (
	"context"
	"sync"

	"github.com/snaptab/snaptab/internal/models"
)

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the session in process memory only. It backs tests
// and clients that opt out of durable resumption.
type MemoryStore struct {
	mu      sync.Mutex
	session *models.LocalSession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored session, or nil when none is stored.
func (s *MemoryStore) Load(ctx context.Context) (*models.LocalSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	out := *s.session
	return &out, nil
}

// Save replaces the stored session wholesale.
func (s *MemoryStore) Save(ctx context.Context, session models.LocalSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

// Clear removes the stored session.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
