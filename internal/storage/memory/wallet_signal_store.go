package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// WalletSignalStore is an in-memory implementation of storage.WalletSignalStore.
type WalletSignalStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.WalletSignal
	order []string
}

// NewWalletSignalStore creates a new in-memory wallet signal store.
func NewWalletSignalStore() *WalletSignalStore {
	return &WalletSignalStore{
		data: make(map[string]*domain.WalletSignal),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if exists.
func (s *WalletSignalStore) Insert(_ context.Context, sig *domain.WalletSignal) error {
	if sig == nil || sig.Mint == "" || len(sig.Signals) == 0 {
		return storage.ErrInvalidInput
	}

	key := fmt.Sprintf("%s|%s|%d|%s", sig.Mint, sig.Wallet, sig.EventTime, sig.FlowRef)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	c := *sig
	c.Signals = append([]string(nil), sig.Signals...)
	s.data[key] = &c
	s.order = append(s.order, key)
	return nil
}

// GetByMint retrieves signals for a mint ordered by event_time ASC.
func (s *WalletSignalStore) GetByMint(_ context.Context, mint string) ([]*domain.WalletSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletSignal
	for _, key := range s.order {
		sig := s.data[key]
		if sig.Mint == mint {
			c := *sig
			result = append(result, &c)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EventTime < result[j].EventTime
	})

	return result, nil
}

var _ storage.WalletSignalStore = (*WalletSignalStore)(nil)
