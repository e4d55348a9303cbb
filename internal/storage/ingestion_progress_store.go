package storage

import "context"

// IngestionProgress is the newest position already ingested for a mint.
type IngestionProgress struct {
	Mint      string
	Slot      int64  // last ingested Solana slot
	Signature string // last ingested transaction signature
	Timestamp int64  // block time of that transaction (seconds)
}

// IngestionProgressStore persists per-mint ingestion state so backfills and
// live sessions resume without refetching history.
type IngestionProgressStore interface {
	// GetLastProcessed returns the progress for a mint.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context, mint string) (*IngestionProgress, error)

	// SetLastProcessed saves the progress for a mint.
	SetLastProcessed(ctx context.Context, progress *IngestionProgress) error
}
