package postgres

import (
	"context"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/idhash"
	"wallet-signal-lab/internal/storage"
)

// SilenceEventStore implements storage.SilenceEventStore using PostgreSQL.
type SilenceEventStore struct {
	pool *Pool
}

// NewSilenceEventStore creates a new SilenceEventStore.
func NewSilenceEventStore(pool *Pool) *SilenceEventStore {
	return &SilenceEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SilenceEventStore = (*SilenceEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if (mint, wallet, pattern, event_time) exists.
func (s *SilenceEventStore) Insert(ctx context.Context, e *domain.SilenceEvent) error {
	if e == nil || e.Wallet == "" || e.Pattern == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO silence_events (event_id, mint, wallet, pattern, event_time, trigger)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		idhash.ComputeSilenceEventID(e.Mint, e.Wallet, e.Pattern, e.EventTime),
		e.Mint, e.Wallet, e.Pattern, e.EventTime, e.Trigger,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert silence event: %w", err)
	}
	return nil
}

// GetByMint retrieves events for a mint ordered by event_time ASC.
func (s *SilenceEventStore) GetByMint(ctx context.Context, mint string) ([]*domain.SilenceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mint, wallet, pattern, event_time, trigger
		FROM silence_events
		WHERE mint = $1
		ORDER BY event_time ASC, wallet ASC, pattern ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("get silence events by mint: %w", err)
	}
	defer rows.Close()

	var events []*domain.SilenceEvent
	for rows.Next() {
		var e domain.SilenceEvent
		if err := rows.Scan(&e.Mint, &e.Wallet, &e.Pattern, &e.EventTime, &e.Trigger); err != nil {
			return nil, fmt.Errorf("scan silence event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate silence event rows: %w", err)
	}

	return events, nil
}
