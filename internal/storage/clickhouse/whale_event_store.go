package clickhouse

import (
	"context"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// WhaleEventStore implements storage.WhaleEventStore using ClickHouse.
// It holds the analytics copy of whale events; Postgres stays the system of record.
type WhaleEventStore struct {
	conn *Conn
}

// NewWhaleEventStore creates a new WhaleEventStore.
func NewWhaleEventStore(conn *Conn) *WhaleEventStore {
	return &WhaleEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WhaleEventStore = (*WhaleEventStore)(nil)

const selectWhaleEvents = `
	SELECT wallet, mint, time_window, event_type, event_time, flow_ref, amount, supporting_flows
	FROM whale_events FINAL
`

const whaleEventOrder = ` ORDER BY event_time ASC, wallet ASC, time_window ASC, event_type ASC, flow_ref ASC`

// Insert adds a new event. Returns ErrDuplicateKey if the identity key exists.
func (s *WhaleEventStore) Insert(ctx context.Context, e *domain.WhaleEvent) error {
	return s.InsertBulk(ctx, []*domain.WhaleEvent{e})
}

// InsertBulk adds multiple events. Fails entire batch on any duplicate.
func (s *WhaleEventStore) InsertBulk(ctx context.Context, events []*domain.WhaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[domain.WhaleEventKey]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Wallet == "" || e.EventType == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.Key()]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.Key()] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	for _, e := range events {
		exists, err := s.exists(ctx, e.Key())
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO whale_events (
			wallet, mint, time_window, event_type, event_time, flow_ref, amount, supporting_flows
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Wallet, e.Mint, string(e.Window), e.EventType,
			e.EventTime, e.FlowRef, e.Amount, uint32(e.SupportingFlows),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByWallet retrieves all events of a wallet.
func (s *WhaleEventStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.WhaleEvent, error) {
	rows, err := s.conn.Query(ctx, selectWhaleEvents+` WHERE wallet = ?`+whaleEventOrder, wallet)
	if err != nil {
		return nil, fmt.Errorf("query by wallet: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

// GetByTimeRange retrieves events with event_time within [start, end] (inclusive).
func (s *WhaleEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleEvent, error) {
	rows, err := s.conn.Query(ctx, selectWhaleEvents+` WHERE event_time >= ? AND event_time <= ?`+whaleEventOrder, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

// GetAll retrieves every stored event.
func (s *WhaleEventStore) GetAll(ctx context.Context) ([]*domain.WhaleEvent, error) {
	rows, err := s.conn.Query(ctx, selectWhaleEvents+whaleEventOrder)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanWhaleEvents(rows)
}

// CountByType returns the number of stored events per event type.
func (s *WhaleEventStore) CountByType(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_type, count(*) FROM whale_events FINAL
		GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var eventType string
		var n uint64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[eventType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count rows: %w", err)
	}
	return counts, nil
}

func (s *WhaleEventStore) exists(ctx context.Context, k domain.WhaleEventKey) (bool, error) {
	query := `
		SELECT count(*) FROM whale_events FINAL
		WHERE wallet = ? AND time_window = ? AND event_type = ? AND event_time = ? AND flow_ref = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, k.Wallet, string(k.Window), k.EventType, k.EventTime, k.FlowRef).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanWhaleEvents(rows chRows) ([]*domain.WhaleEvent, error) {
	var events []*domain.WhaleEvent

	for rows.Next() {
		var e domain.WhaleEvent
		var window string
		var supporting uint32
		err := rows.Scan(
			&e.Wallet, &e.Mint, &window, &e.EventType,
			&e.EventTime, &e.FlowRef, &e.Amount, &supporting,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale event row: %w", err)
		}
		e.Window = domain.Window(window)
		e.SupportingFlows = int(supporting)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale event rows: %w", err)
	}

	return events, nil
}
