package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// TransitionStore is an in-memory implementation of storage.TransitionStore.
type TransitionStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.StateTransition
	order []string // insertion order
}

// NewTransitionStore creates a new in-memory transition store.
func NewTransitionStore() *TransitionStore {
	return &TransitionStore{
		data: make(map[string]*domain.StateTransition),
	}
}

// Insert adds a new transition. Returns ErrDuplicateKey if exists.
func (s *TransitionStore) Insert(_ context.Context, t *domain.StateTransition) error {
	if t == nil || t.Mint == "" || t.To == "" {
		return storage.ErrInvalidInput
	}

	key := fmt.Sprintf("%s|%d|%s|%s", t.Mint, t.Time, t.From, t.To)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[key] = &copy
	s.order = append(s.order, key)
	return nil
}

// GetByMint retrieves transitions for a mint ordered by time ASC.
func (s *TransitionStore) GetByMint(_ context.Context, mint string) ([]*domain.StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StateTransition
	for _, key := range s.order {
		t := s.data[key]
		if t.Mint == mint {
			copy := *t
			result = append(result, &copy)
		}
	}

	// Transitions sharing a timestamp keep insertion order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})

	return result, nil
}

var _ storage.TransitionStore = (*TransitionStore)(nil)
