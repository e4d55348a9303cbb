package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// WhaleStateStore implements storage.WhaleStateStore using PostgreSQL.
type WhaleStateStore struct {
	pool *Pool
}

// NewWhaleStateStore creates a new WhaleStateStore.
func NewWhaleStateStore(pool *Pool) *WhaleStateStore {
	return &WhaleStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WhaleStateStore = (*WhaleStateStore)(nil)

// Upsert inserts or replaces states keyed by (wallet, window) in one transaction.
func (s *WhaleStateStore) Upsert(ctx context.Context, states []*domain.WhaleState) error {
	if len(states) == 0 {
		return nil
	}
	for _, st := range states {
		if st == nil || st.Wallet == "" || st.Window == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO whale_states (
			wallet, time_window, tx_buy_count, tx_sell_count, tx_buy_max, tx_sell_max,
			cum_buy_total, cum_sell_total, first_whale_time, last_whale_time, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (wallet, time_window) DO UPDATE
		SET tx_buy_count = EXCLUDED.tx_buy_count,
		    tx_sell_count = EXCLUDED.tx_sell_count,
		    tx_buy_max = EXCLUDED.tx_buy_max,
		    tx_sell_max = EXCLUDED.tx_sell_max,
		    cum_buy_total = EXCLUDED.cum_buy_total,
		    cum_sell_total = EXCLUDED.cum_sell_total,
		    first_whale_time = EXCLUDED.first_whale_time,
		    last_whale_time = EXCLUDED.last_whale_time,
		    updated_at = NOW()
	`

	for _, st := range states {
		_, err := tx.Exec(ctx, query,
			st.Wallet, string(st.Window),
			st.TxBuyCount, st.TxSellCount, st.TxBuyMax, st.TxSellMax,
			st.CumBuyTotal, st.CumSellTotal, st.FirstWhaleTime, st.LastWhaleTime,
		)
		if err != nil {
			return fmt.Errorf("upsert whale state: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectWhaleStateColumns = `
	SELECT wallet, time_window, tx_buy_count, tx_sell_count, tx_buy_max, tx_sell_max,
	       cum_buy_total, cum_sell_total, first_whale_time, last_whale_time
	FROM whale_states
`

// GetByWallet retrieves all window states of a wallet ordered by window.
func (s *WhaleStateStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.WhaleState, error) {
	rows, err := s.pool.Query(ctx, selectWhaleStateColumns+` WHERE wallet = $1 ORDER BY time_window ASC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("get whale states by wallet: %w", err)
	}
	defer rows.Close()

	return scanWhaleStates(rows)
}

// GetAll retrieves every state ordered by wallet, window.
func (s *WhaleStateStore) GetAll(ctx context.Context) ([]*domain.WhaleState, error) {
	rows, err := s.pool.Query(ctx, selectWhaleStateColumns+` ORDER BY wallet ASC, time_window ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all whale states: %w", err)
	}
	defer rows.Close()

	return scanWhaleStates(rows)
}

func scanWhaleStates(rows pgx.Rows) ([]*domain.WhaleState, error) {
	var states []*domain.WhaleState

	for rows.Next() {
		var st domain.WhaleState
		var window string

		err := rows.Scan(
			&st.Wallet, &window,
			&st.TxBuyCount, &st.TxSellCount, &st.TxBuyMax, &st.TxSellMax,
			&st.CumBuyTotal, &st.CumSellTotal, &st.FirstWhaleTime, &st.LastWhaleTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale state row: %w", err)
		}
		st.Window = domain.Window(window)

		states = append(states, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale state rows: %w", err)
	}

	return states, nil
}
