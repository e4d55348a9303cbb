package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

type whaleStateKey struct {
	wallet string
	window domain.Window
}

// WhaleStateStore is an in-memory implementation of storage.WhaleStateStore.
type WhaleStateStore struct {
	mu   sync.RWMutex
	data map[whaleStateKey]*domain.WhaleState
}

// NewWhaleStateStore creates a new in-memory whale state store.
func NewWhaleStateStore() *WhaleStateStore {
	return &WhaleStateStore{
		data: make(map[whaleStateKey]*domain.WhaleState),
	}
}

// Upsert inserts or replaces states keyed by (wallet, window).
func (s *WhaleStateStore) Upsert(_ context.Context, states []*domain.WhaleState) error {
	for _, st := range states {
		if st == nil || st.Wallet == "" || st.Window == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range states {
		copy := *st
		s.data[whaleStateKey{wallet: st.Wallet, window: st.Window}] = &copy
	}
	return nil
}

// GetByWallet retrieves all window states of a wallet ordered by window.
func (s *WhaleStateStore) GetByWallet(_ context.Context, wallet string) ([]*domain.WhaleState, error) {
	return s.filter(func(st *domain.WhaleState) bool { return st.Wallet == wallet }), nil
}

// GetAll retrieves every state ordered by wallet, window.
func (s *WhaleStateStore) GetAll(_ context.Context) ([]*domain.WhaleState, error) {
	return s.filter(func(*domain.WhaleState) bool { return true }), nil
}

func (s *WhaleStateStore) filter(keep func(*domain.WhaleState) bool) []*domain.WhaleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WhaleState
	for _, st := range s.data {
		if keep(st) {
			copy := *st
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Wallet != result[j].Wallet {
			return result[i].Wallet < result[j].Wallet
		}
		return result[i].Window < result[j].Window
	})

	return result
}

var _ storage.WhaleStateStore = (*WhaleStateStore)(nil)
