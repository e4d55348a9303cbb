package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// FlowStore implements storage.FlowStore using PostgreSQL.
type FlowStore struct {
	pool *Pool
}

// NewFlowStore creates a new FlowStore.
func NewFlowStore(pool *Pool) *FlowStore {
	return &FlowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FlowStore = (*FlowStore)(nil)

const insertFlowQuery = `
	INSERT INTO flows (
		mint, wallet, direction, signature, timestamp, amount, slot
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const selectFlowColumns = `
	SELECT mint, wallet, direction, signature, timestamp, amount, slot
	FROM flows
`

const flowOrder = ` ORDER BY timestamp ASC, signature ASC, wallet ASC, direction ASC`

// Insert adds a new flow. Returns ErrDuplicateKey if (mint, wallet, direction, signature) exists.
func (s *FlowStore) Insert(ctx context.Context, f *domain.Flow) error {
	if f == nil || !f.Validate() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertFlowQuery,
		f.Mint, f.Wallet, f.Direction, f.Signature, f.Timestamp, f.Amount, f.Slot,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// InsertBulk adds multiple flows atomically. Fails entire batch on any duplicate.
func (s *FlowStore) InsertBulk(ctx context.Context, flows []*domain.Flow) error {
	if len(flows) == 0 {
		return nil
	}
	for _, f := range flows {
		if f == nil || !f.Validate() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range flows {
		_, err := tx.Exec(ctx, insertFlowQuery,
			f.Mint, f.Wallet, f.Direction, f.Signature, f.Timestamp, f.Amount, f.Slot,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert flow in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InsertNew adds the flows that are not stored yet and returns how many were added.
func (s *FlowStore) InsertNew(ctx context.Context, flows []*domain.Flow) (int, error) {
	if len(flows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, f := range flows {
		if f == nil || !f.Validate() {
			return 0, storage.ErrInvalidInput
		}
		tag, err := tx.Exec(ctx, insertFlowQuery+` ON CONFLICT DO NOTHING`,
			f.Mint, f.Wallet, f.Direction, f.Signature, f.Timestamp, f.Amount, f.Slot,
		)
		if err != nil {
			return 0, fmt.Errorf("insert new flow: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// GetByMint retrieves all flows for a mint in canonical order.
func (s *FlowStore) GetByMint(ctx context.Context, mint string) ([]*domain.Flow, error) {
	rows, err := s.pool.Query(ctx, selectFlowColumns+` WHERE mint = $1`+flowOrder, mint)
	if err != nil {
		return nil, fmt.Errorf("get flows by mint: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// GetByTimeRange retrieves flows for a mint within [start, end] (inclusive).
func (s *FlowStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Flow, error) {
	rows, err := s.pool.Query(ctx,
		selectFlowColumns+` WHERE mint = $1 AND timestamp >= $2 AND timestamp <= $3`+flowOrder,
		mint, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("get flows by time range: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// GetByWallet retrieves all flows of a wallet across mints.
func (s *FlowStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.Flow, error) {
	rows, err := s.pool.Query(ctx, selectFlowColumns+` WHERE wallet = $1`+flowOrder, wallet)
	if err != nil {
		return nil, fmt.Errorf("get flows by wallet: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// GetAll retrieves every stored flow.
func (s *FlowStore) GetAll(ctx context.Context) ([]*domain.Flow, error) {
	rows, err := s.pool.Query(ctx, selectFlowColumns+flowOrder)
	if err != nil {
		return nil, fmt.Errorf("get all flows: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// scanFlows scans multiple rows into a slice of Flow.
func scanFlows(rows pgx.Rows) ([]*domain.Flow, error) {
	var flows []*domain.Flow

	for rows.Next() {
		var f domain.Flow
		var direction string

		err := rows.Scan(
			&f.Mint,
			&f.Wallet,
			&direction,
			&f.Signature,
			&f.Timestamp,
			&f.Amount,
			&f.Slot,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow row: %w", err)
		}
		f.Direction = domain.Direction(direction)

		flows = append(flows, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow rows: %w", err)
	}

	return flows, nil
}
