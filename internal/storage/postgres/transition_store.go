package postgres

import (
	"context"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// TransitionStore implements storage.TransitionStore using PostgreSQL.
type TransitionStore struct {
	pool *Pool
}

// NewTransitionStore creates a new TransitionStore.
func NewTransitionStore(pool *Pool) *TransitionStore {
	return &TransitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransitionStore = (*TransitionStore)(nil)

// Insert adds a new transition. Returns ErrDuplicateKey if (mint, time, from_state, to_state) exists.
func (s *TransitionStore) Insert(ctx context.Context, t *domain.StateTransition) error {
	if t == nil || t.Mint == "" || t.To == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO state_transitions (mint, episode_id, from_state, to_state, trigger, severity, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.Mint, t.EpisodeID, string(t.From), string(t.To), t.Trigger, t.Severity, t.Time)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert state transition: %w", err)
	}
	return nil
}

// GetByMint retrieves transitions for a mint ordered by time ASC.
// Transitions sharing a timestamp keep their insertion order.
func (s *TransitionStore) GetByMint(ctx context.Context, mint string) ([]*domain.StateTransition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mint, episode_id, from_state, to_state, trigger, severity, time
		FROM state_transitions
		WHERE mint = $1
		ORDER BY time ASC, id ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("get state transitions by mint: %w", err)
	}
	defer rows.Close()

	var transitions []*domain.StateTransition
	for rows.Next() {
		var t domain.StateTransition
		var from, to string
		if err := rows.Scan(&t.Mint, &t.EpisodeID, &from, &to, &t.Trigger, &t.Severity, &t.Time); err != nil {
			return nil, fmt.Errorf("scan state transition row: %w", err)
		}
		t.From = domain.TokenState(from)
		t.To = domain.TokenState(to)
		transitions = append(transitions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state transition rows: %w", err)
	}

	return transitions, nil
}
