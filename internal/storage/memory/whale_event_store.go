package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// WhaleEventStore is an in-memory implementation of storage.WhaleEventStore.
type WhaleEventStore struct {
	mu   sync.RWMutex
	data map[domain.WhaleEventKey]*domain.WhaleEvent
}

// NewWhaleEventStore creates a new in-memory whale event store.
func NewWhaleEventStore() *WhaleEventStore {
	return &WhaleEventStore{
		data: make(map[domain.WhaleEventKey]*domain.WhaleEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if the identity key exists.
func (s *WhaleEventStore) Insert(_ context.Context, e *domain.WhaleEvent) error {
	if e == nil || e.Wallet == "" || e.EventType == "" {
		return storage.ErrInvalidInput
	}

	key := e.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *WhaleEventStore) InsertBulk(_ context.Context, events []*domain.WhaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[domain.WhaleEventKey]struct{}, len(events))

	for _, e := range events {
		if e == nil || e.Wallet == "" || e.EventType == "" {
			return storage.ErrInvalidInput
		}
		key := e.Key()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		copy := *e
		s.data[e.Key()] = &copy
	}

	return nil
}

// GetByWallet retrieves all events of a wallet.
func (s *WhaleEventStore) GetByWallet(_ context.Context, wallet string) ([]*domain.WhaleEvent, error) {
	return s.filter(func(e *domain.WhaleEvent) bool { return e.Wallet == wallet }), nil
}

// GetByTimeRange retrieves events with event_time within [start, end] (inclusive).
func (s *WhaleEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.WhaleEvent, error) {
	return s.filter(func(e *domain.WhaleEvent) bool {
		return e.EventTime >= start && e.EventTime <= end
	}), nil
}

// GetAll retrieves every stored event.
func (s *WhaleEventStore) GetAll(_ context.Context) ([]*domain.WhaleEvent, error) {
	return s.filter(func(*domain.WhaleEvent) bool { return true }), nil
}

func (s *WhaleEventStore) filter(keep func(*domain.WhaleEvent) bool) []*domain.WhaleEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WhaleEvent
	for _, e := range s.data {
		if keep(e) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return domain.WhaleEventLess(result[i], result[j])
	})

	return result
}

var _ storage.WhaleEventStore = (*WhaleEventStore)(nil)
