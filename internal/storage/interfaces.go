package storage

import (
	"context"

	"wallet-signal-lab/internal/domain"
)

// FlowStore provides access to flows storage.
// Reads return flows in canonical order: timestamp, signature, wallet, direction ASC.
type FlowStore interface {
	// Insert adds a new flow. Returns ErrDuplicateKey if (mint, wallet, direction, signature) exists.
	Insert(ctx context.Context, f *domain.Flow) error

	// InsertBulk adds multiple flows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, flows []*domain.Flow) error

	// InsertNew adds the flows that are not stored yet and returns how many were added.
	InsertNew(ctx context.Context, flows []*domain.Flow) (int, error)

	// GetByMint retrieves all flows for a mint.
	GetByMint(ctx context.Context, mint string) ([]*domain.Flow, error)

	// GetByTimeRange retrieves flows for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Flow, error)

	// GetByWallet retrieves all flows of a wallet across mints.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.Flow, error)

	// GetAll retrieves every stored flow.
	GetAll(ctx context.Context) ([]*domain.Flow, error)
}

// WhaleEventStore provides access to whale_events storage.
// Reads return events ordered by event_time, wallet, window, event_type, flow_ref ASC.
type WhaleEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if the identity key exists.
	Insert(ctx context.Context, e *domain.WhaleEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.WhaleEvent) error

	// GetByWallet retrieves all events of a wallet.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.WhaleEvent, error)

	// GetByTimeRange retrieves events with event_time within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.WhaleEvent, error)

	// GetAll retrieves every stored event.
	GetAll(ctx context.Context) ([]*domain.WhaleEvent, error)
}

// WhaleStateStore provides access to whale_states storage.
// States are derived aggregates, so writes replace existing rows.
type WhaleStateStore interface {
	// Upsert inserts or replaces states keyed by (wallet, window).
	Upsert(ctx context.Context, states []*domain.WhaleState) error

	// GetByWallet retrieves all window states of a wallet ordered by window.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.WhaleState, error)

	// GetAll retrieves every state ordered by wallet, window.
	GetAll(ctx context.Context) ([]*domain.WhaleState, error)
}

// SilenceEventStore provides access to silence_events storage.
type SilenceEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if (mint, wallet, pattern, event_time) exists.
	Insert(ctx context.Context, e *domain.SilenceEvent) error

	// GetByMint retrieves events for a mint ordered by event_time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.SilenceEvent, error)
}

// TransitionStore provides access to state_transitions storage.
type TransitionStore interface {
	// Insert adds a new transition. Returns ErrDuplicateKey if (mint, time, from_state, to_state) exists.
	Insert(ctx context.Context, t *domain.StateTransition) error

	// GetByMint retrieves transitions for a mint ordered by time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.StateTransition, error)
}

// WalletSignalStore provides access to wallet_signals storage.
// Token-level EXHAUSTION signals are stored with an empty wallet.
type WalletSignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if (mint, wallet, event_time, flow_ref) exists.
	Insert(ctx context.Context, s *domain.WalletSignal) error

	// GetByMint retrieves signals for a mint ordered by event_time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.WalletSignal, error)
}
