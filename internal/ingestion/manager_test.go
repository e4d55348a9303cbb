package ingestion

import (
	"context"
	"errors"
	"testing"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
	"wallet-signal-lab/internal/storage/memory"
)

func TestManager_IngestFlows(t *testing.T) {
	ctx := context.Background()

	// Intentionally unordered flows
	flows := []*domain.Flow{
		{Wallet: "w2", Mint: testMint, Timestamp: 300, Direction: domain.DirectionSell, Amount: 3, Signature: "c", Slot: 30},
		{Wallet: "w1", Mint: testMint, Timestamp: 100, Direction: domain.DirectionBuy, Amount: 1, Signature: "a", Slot: 10},
		{Wallet: "w1", Mint: testMint, Timestamp: 200, Direction: domain.DirectionBuy, Amount: 2, Signature: "b", Slot: 20},
		{Wallet: "w9", Mint: "other", Timestamp: 150, Direction: domain.DirectionBuy, Amount: 9, Signature: "x", Slot: 15},
	}

	store := memory.NewFlowStore()
	progress := memory.NewIngestionProgressStore()
	mgr := NewManager(ManagerOptions{
		Source:   NewStaticFlowSource(flows),
		Store:    store,
		Progress: progress,
	})

	n, err := mgr.IngestFlows(ctx, testMint, 0, 1000)
	if err != nil {
		t.Fatalf("IngestFlows: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 new flows, got %d", n)
	}

	stored, err := store.GetByMint(ctx, testMint)
	if err != nil {
		t.Fatalf("GetByMint: %v", err)
	}
	if err := ValidateFlowOrdering(stored); err != nil {
		t.Errorf("stored flows not ordered: %v", err)
	}

	p, err := progress.GetLastProcessed(ctx, testMint)
	if err != nil {
		t.Fatalf("GetLastProcessed: %v", err)
	}
	if p.Signature != "c" || p.Timestamp != 300 || p.Slot != 30 {
		t.Errorf("unexpected progress: %+v", p)
	}

	// Second run adds nothing
	n, err = mgr.IngestFlows(ctx, testMint, 0, 1000)
	if err != nil {
		t.Fatalf("IngestFlows (repeat): %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 new flows on repeat, got %d", n)
	}
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()

	flows := []*domain.Flow{
		{Wallet: "w1", Mint: testMint, Timestamp: 100, Direction: domain.DirectionBuy, Amount: 1, Signature: "a"},
		{Wallet: "w1", Mint: testMint, Timestamp: 200, Direction: domain.DirectionBuy, Amount: 2, Signature: "b"},
	}
	store := memory.NewFlowStore()
	progress := memory.NewIngestionProgressStore()
	if err := progress.SetLastProcessed(ctx, &storage.IngestionProgress{Mint: testMint, Timestamp: 150}); err != nil {
		t.Fatalf("SetLastProcessed: %v", err)
	}

	mgr := NewManager(ManagerOptions{Source: NewStaticFlowSource(flows), Store: store, Progress: progress})
	n, err := mgr.Resume(ctx, testMint, 0, 1000)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the flow after saved progress, got %d", n)
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string, int64, int64) ([]*domain.Flow, error) {
	return nil, errors.New("rpc down")
}

func TestManager_SourceError(t *testing.T) {
	mgr := NewManager(ManagerOptions{Source: failingSource{}, Store: memory.NewFlowStore()})
	if _, err := mgr.IngestFlows(context.Background(), testMint, 0, 10); err == nil {
		t.Error("expected error from failing source")
	}
}

func TestManager_NilSource(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	n, err := mgr.IngestFlows(context.Background(), testMint, 0, 10)
	if err != nil || n != 0 {
		t.Errorf("expected no-op, got n=%d err=%v", n, err)
	}
}
