package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// SilenceEventStore is an in-memory implementation of storage.SilenceEventStore.
type SilenceEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SilenceEvent
}

// NewSilenceEventStore creates a new in-memory silence event store.
func NewSilenceEventStore() *SilenceEventStore {
	return &SilenceEventStore{
		data: make(map[string]*domain.SilenceEvent),
	}
}

func silenceKey(e *domain.SilenceEvent) string {
	return fmt.Sprintf("%s|%s|%s|%d", e.Mint, e.Wallet, e.Pattern, e.EventTime)
}

// Insert adds a new event. Returns ErrDuplicateKey if exists.
func (s *SilenceEventStore) Insert(_ context.Context, e *domain.SilenceEvent) error {
	if e == nil || e.Wallet == "" || e.Pattern == "" {
		return storage.ErrInvalidInput
	}

	key := silenceKey(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// GetByMint retrieves events for a mint ordered by event_time ASC.
func (s *SilenceEventStore) GetByMint(_ context.Context, mint string) ([]*domain.SilenceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SilenceEvent
	for _, e := range s.data {
		if e.Mint == mint {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EventTime != result[j].EventTime {
			return result[i].EventTime < result[j].EventTime
		}
		return result[i].Wallet < result[j].Wallet
	})

	return result, nil
}

var _ storage.SilenceEventStore = (*SilenceEventStore)(nil)
