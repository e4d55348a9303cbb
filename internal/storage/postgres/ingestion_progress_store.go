package postgres

import (
	"context"

	"wallet-signal-lab/internal/storage"
)

// IngestionProgressStore is a PostgreSQL implementation of storage.IngestionProgressStore.
// One row per mint in ingestion_progress.
type IngestionProgressStore struct {
	pool *Pool
}

// NewIngestionProgressStore creates a new PostgreSQL ingestion progress store.
func NewIngestionProgressStore(pool *Pool) *IngestionProgressStore {
	return &IngestionProgressStore{pool: pool}
}

// GetLastProcessed returns the progress for a mint.
func (s *IngestionProgressStore) GetLastProcessed(ctx context.Context, mint string) (*storage.IngestionProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT mint, slot, signature, timestamp
		FROM ingestion_progress
		WHERE mint = $1
	`, mint)

	var progress storage.IngestionProgress
	err := row.Scan(&progress.Mint, &progress.Slot, &progress.Signature, &progress.Timestamp)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &progress, nil
}

// SetLastProcessed saves the progress for a mint.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IngestionProgressStore) SetLastProcessed(ctx context.Context, progress *storage.IngestionProgress) error {
	if progress == nil || progress.Mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_progress (mint, slot, signature, timestamp, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (mint) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    timestamp = EXCLUDED.timestamp,
		    updated_at = NOW()
	`, progress.Mint, progress.Slot, progress.Signature, progress.Timestamp)

	return err
}

var _ storage.IngestionProgressStore = (*IngestionProgressStore)(nil)
