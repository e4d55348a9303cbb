package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/idhash"
	"wallet-signal-lab/internal/storage"
)

// WhaleEventStore implements storage.WhaleEventStore using PostgreSQL.
// Rows are keyed by a deterministic event_id derived from the event identity.
type WhaleEventStore struct {
	pool *Pool
}

// NewWhaleEventStore creates a new WhaleEventStore.
func NewWhaleEventStore(pool *Pool) *WhaleEventStore {
	return &WhaleEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WhaleEventStore = (*WhaleEventStore)(nil)

const insertWhaleEventQuery = `
	INSERT INTO whale_events (
		event_id, wallet, mint, time_window, event_type, event_time, flow_ref, amount, supporting_flows
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const selectWhaleEventColumns = `
	SELECT wallet, mint, time_window, event_type, event_time, flow_ref, amount, supporting_flows
	FROM whale_events
`

const whaleEventOrder = ` ORDER BY event_time ASC, wallet ASC, time_window ASC, event_type ASC, flow_ref ASC`

func whaleEventArgs(e *domain.WhaleEvent) []any {
	return []any{
		idhash.ComputeWhaleEventID(e.Key()),
		e.Wallet,
		e.Mint,
		string(e.Window),
		e.EventType,
		e.EventTime,
		e.FlowRef,
		e.Amount,
		e.SupportingFlows,
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if the identity key exists.
func (s *WhaleEventStore) Insert(ctx context.Context, e *domain.WhaleEvent) error {
	if e == nil || e.Wallet == "" || e.EventType == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertWhaleEventQuery, whaleEventArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert whale event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *WhaleEventStore) InsertBulk(ctx context.Context, events []*domain.WhaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.Wallet == "" || e.EventType == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertWhaleEventQuery, whaleEventArgs(e)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert whale event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByWallet retrieves all events of a wallet.
func (s *WhaleEventStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.WhaleEvent, error) {
	rows, err := s.pool.Query(ctx, selectWhaleEventColumns+` WHERE wallet = $1`+whaleEventOrder, wallet)
	if err != nil {
		return nil, fmt.Errorf("get whale events by wallet: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

// GetByTimeRange retrieves events with event_time within [start, end] (inclusive).
func (s *WhaleEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleEvent, error) {
	rows, err := s.pool.Query(ctx,
		selectWhaleEventColumns+` WHERE event_time >= $1 AND event_time <= $2`+whaleEventOrder,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("get whale events by time range: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

// GetAll retrieves every stored event.
func (s *WhaleEventStore) GetAll(ctx context.Context) ([]*domain.WhaleEvent, error) {
	rows, err := s.pool.Query(ctx, selectWhaleEventColumns+whaleEventOrder)
	if err != nil {
		return nil, fmt.Errorf("get all whale events: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

func scanWhaleEvents(rows pgx.Rows) ([]*domain.WhaleEvent, error) {
	var events []*domain.WhaleEvent

	for rows.Next() {
		var e domain.WhaleEvent
		var window string

		err := rows.Scan(
			&e.Wallet,
			&e.Mint,
			&window,
			&e.EventType,
			&e.EventTime,
			&e.FlowRef,
			&e.Amount,
			&e.SupportingFlows,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale event row: %w", err)
		}
		e.Window = domain.Window(window)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale event rows: %w", err)
	}

	return events, nil
}
