package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/idhash"
	"wallet-signal-lab/internal/storage"
)

// WalletSignalStore implements storage.WalletSignalStore using PostgreSQL.
// Signal details are kept as JSONB.
type WalletSignalStore struct {
	pool *Pool
}

// NewWalletSignalStore creates a new WalletSignalStore.
func NewWalletSignalStore(pool *Pool) *WalletSignalStore {
	return &WalletSignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletSignalStore = (*WalletSignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if (mint, wallet, event_time, flow_ref) exists.
func (s *WalletSignalStore) Insert(ctx context.Context, sig *domain.WalletSignal) error {
	if sig == nil || sig.Mint == "" || len(sig.Signals) == 0 {
		return storage.ErrInvalidInput
	}

	details, err := json.Marshal(sig.Details)
	if err != nil {
		return fmt.Errorf("marshal signal details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wallet_signals (signal_id, mint, wallet, event_time, flow_ref, episode_id, signals, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		idhash.ComputeWalletSignalID(sig.Mint, sig.Wallet, sig.EventTime, sig.FlowRef),
		sig.Mint, sig.Wallet, sig.EventTime, sig.FlowRef, sig.EpisodeID, sig.Signals, details,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet signal: %w", err)
	}
	return nil
}

// GetByMint retrieves signals for a mint ordered by event_time ASC.
func (s *WalletSignalStore) GetByMint(ctx context.Context, mint string) ([]*domain.WalletSignal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mint, wallet, event_time, flow_ref, episode_id, signals, details
		FROM wallet_signals
		WHERE mint = $1
		ORDER BY event_time ASC, wallet ASC, flow_ref ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("get wallet signals by mint: %w", err)
	}
	defer rows.Close()

	var result []*domain.WalletSignal
	for rows.Next() {
		var sig domain.WalletSignal
		var details []byte
		if err := rows.Scan(&sig.Mint, &sig.Wallet, &sig.EventTime, &sig.FlowRef, &sig.EpisodeID, &sig.Signals, &details); err != nil {
			return nil, fmt.Errorf("scan wallet signal row: %w", err)
		}
		if err := json.Unmarshal(details, &sig.Details); err != nil {
			return nil, fmt.Errorf("decode signal details: %w", err)
		}
		result = append(result, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet signal rows: %w", err)
	}

	return result, nil
}
