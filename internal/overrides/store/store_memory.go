package store

import (
	"context"
	"sync"

	"idmask/internal/identity/models"
)

// InMemoryStore keeps the encoded blob in memory, so corruption handling is
// the same as for the durable stores.
type InMemoryStore struct {
	mu       sync.RWMutex
	blob     []byte
	settings settings
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	return &InMemoryStore{settings: newSettings(opts)}
}

func (s *InMemoryStore) Load(ctx context.Context) (models.Snapshot, bool, error) {
	s.mu.RLock()
	blob := s.blob
	s.mu.RUnlock()

	snap, err := decode(blob)
	if err != nil {
		s.settings.recoverCorrupt(ctx, "memory", err)
		return snap, true, nil
	}
	return snap, false, nil
}

func (s *InMemoryStore) Save(_ context.Context, snap models.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = data
	return nil
}

// SetRaw replaces the stored blob verbatim.
func (s *InMemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), data...)
}
