package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// FlowStore is an in-memory implementation of storage.FlowStore.
type FlowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Flow // keyed by composite key
}

// NewFlowStore creates a new in-memory flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		data: make(map[string]*domain.Flow),
	}
}

// flowKey generates a unique key for a flow.
func flowKey(f *domain.Flow) string {
	return fmt.Sprintf("%s|%s|%s|%s", f.Mint, f.Wallet, f.Direction, f.Signature)
}

// Insert adds a new flow. Returns ErrDuplicateKey if exists.
func (s *FlowStore) Insert(_ context.Context, f *domain.Flow) error {
	if f == nil || !f.Validate() {
		return storage.ErrInvalidInput
	}

	key := flowKey(f)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *f
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple flows atomically. Fails entire batch on any duplicate.
func (s *FlowStore) InsertBulk(_ context.Context, flows []*domain.Flow) error {
	if len(flows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(flows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, f := range flows {
		if f == nil || !f.Validate() {
			return storage.ErrInvalidInput
		}
		key := flowKey(f)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, f := range flows {
		copy := *f
		s.data[flowKey(f)] = &copy
	}

	return nil
}

// InsertNew adds flows not stored yet and returns how many were added.
func (s *FlowStore) InsertNew(_ context.Context, flows []*domain.Flow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range flows {
		if f == nil || !f.Validate() {
			return 0, storage.ErrInvalidInput
		}
	}

	added := 0
	for _, f := range flows {
		key := flowKey(f)
		if _, exists := s.data[key]; exists {
			continue
		}
		copy := *f
		s.data[key] = &copy
		added++
	}
	return added, nil
}

// GetByMint retrieves all flows for a mint.
func (s *FlowStore) GetByMint(_ context.Context, mint string) ([]*domain.Flow, error) {
	return s.filter(func(f *domain.Flow) bool { return f.Mint == mint }), nil
}

// GetByTimeRange retrieves flows for a mint within [start, end] (inclusive).
func (s *FlowStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Flow, error) {
	return s.filter(func(f *domain.Flow) bool {
		return f.Mint == mint && f.Timestamp >= start && f.Timestamp <= end
	}), nil
}

// GetByWallet retrieves all flows of a wallet across mints.
func (s *FlowStore) GetByWallet(_ context.Context, wallet string) ([]*domain.Flow, error) {
	return s.filter(func(f *domain.Flow) bool { return f.Wallet == wallet }), nil
}

// GetAll retrieves every stored flow.
func (s *FlowStore) GetAll(_ context.Context) ([]*domain.Flow, error) {
	return s.filter(func(*domain.Flow) bool { return true }), nil
}

func (s *FlowStore) filter(keep func(*domain.Flow) bool) []*domain.Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Flow
	for _, f := range s.data {
		if keep(f) {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return domain.FlowLess(result[i], result[j])
	})

	return result
}

var _ storage.FlowStore = (*FlowStore)(nil)
