package memory

import (
	"context"
	"sync"

	"wallet-signal-lab/internal/storage"
)

// IngestionProgressStore is an in-memory implementation of storage.IngestionProgressStore.
type IngestionProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.IngestionProgress
}

// NewIngestionProgressStore creates a new in-memory ingestion progress store.
func NewIngestionProgressStore() *IngestionProgressStore {
	return &IngestionProgressStore{
		progress: make(map[string]storage.IngestionProgress),
	}
}

// GetLastProcessed returns the progress for a mint.
func (s *IngestionProgressStore) GetLastProcessed(_ context.Context, mint string) (*storage.IngestionProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetLastProcessed saves the progress for a mint.
func (s *IngestionProgressStore) SetLastProcessed(_ context.Context, progress *storage.IngestionProgress) error {
	if progress == nil || progress.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.Mint] = *progress
	return nil
}

var _ storage.IngestionProgressStore = (*IngestionProgressStore)(nil)
