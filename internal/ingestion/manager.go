package ingestion

import (
	"context"
	"errors"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/storage"
)

// Manager orchestrates ingestion from a source into storage.
// It enforces deterministic ordering and lets the store drop duplicates.
type Manager struct {
	source   FlowSource
	store    storage.FlowStore
	progress storage.IngestionProgressStore
	log      *logger.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source   FlowSource
	Store    storage.FlowStore
	Progress storage.IngestionProgressStore // optional
	Logger   *logger.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		source:   opts.Source,
		store:    opts.Store,
		progress: opts.Progress,
		log:      log.Named("ingestion"),
	}
}

// IngestFlows fetches flows for mint in [from, to), sorts them and stores the
// ones not seen before. Returns the number of new flows.
// Progress is advanced to the newest fetched flow.
func (m *Manager) IngestFlows(ctx context.Context, mint string, from, to int64) (int, error) {
	if m.source == nil || m.store == nil {
		return 0, nil
	}

	flows, err := m.source.Fetch(ctx, mint, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch flows: %w", err)
	}
	if len(flows) == 0 {
		return 0, nil
	}

	SortFlows(flows)

	added, err := m.store.InsertNew(ctx, flows)
	if err != nil {
		return 0, fmt.Errorf("store flows: %w", err)
	}

	if err := m.advance(ctx, mint, flows[len(flows)-1]); err != nil {
		return added, err
	}

	m.log.Infow("ingested flows",
		"mint", mint,
		"fetched", len(flows),
		"added", added,
	)
	return added, nil
}

// Resume ingests from the last saved block time for mint up to `to`.
// Without saved progress it starts at `from`.
func (m *Manager) Resume(ctx context.Context, mint string, from, to int64) (int, error) {
	if m.progress != nil {
		p, err := m.progress.GetLastProcessed(ctx, mint)
		switch {
		case err == nil:
			if p.Timestamp > from {
				from = p.Timestamp
			}
		case !errors.Is(err, storage.ErrNotFound):
			return 0, fmt.Errorf("load progress: %w", err)
		}
	}
	return m.IngestFlows(ctx, mint, from, to)
}

func (m *Manager) advance(ctx context.Context, mint string, last *domain.Flow) error {
	if m.progress == nil {
		return nil
	}
	current, err := m.progress.GetLastProcessed(ctx, mint)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load progress: %w", err)
	}
	if current != nil && current.Timestamp > last.Timestamp {
		return nil
	}
	if err := m.progress.SetLastProcessed(ctx, &storage.IngestionProgress{
		Mint:      mint,
		Slot:      last.Slot,
		Signature: last.Signature,
		Timestamp: last.Timestamp,
	}); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
