package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

func newFlow(wallet, sig string, ts int64, dir domain.Direction, amount int64) *domain.Flow {
	return &domain.Flow{
		Wallet:    wallet,
		Mint:      "MintA",
		Timestamp: ts,
		Direction: dir,
		Amount:    amount,
		Signature: sig,
		Slot:      ts + 100,
	}
}

func TestFlowStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFlowStore(pool)

	f := newFlow("W1", "Sig1", 1000, domain.DirectionBuy, 12*domain.LamportsPerSOL)
	require.NoError(t, store.Insert(ctx, f))

	flows, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, *f, *flows[0])
}

func TestFlowStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFlowStore(pool)

	f := newFlow("W1", "Sig1", 1000, domain.DirectionBuy, 1)
	require.NoError(t, store.Insert(ctx, f))

	err := store.Insert(ctx, f)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Opposite side of the same transaction is its own flow.
	require.NoError(t, store.Insert(ctx, newFlow("W1", "Sig1", 1000, domain.DirectionSell, 1)))
}

func TestFlowStore_InsertBulkRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFlowStore(pool)

	require.NoError(t, store.Insert(ctx, newFlow("W1", "Sig1", 1000, domain.DirectionBuy, 1)))

	err := store.InsertBulk(ctx, []*domain.Flow{
		newFlow("W2", "Sig2", 1001, domain.DirectionBuy, 1),
		newFlow("W1", "Sig1", 1000, domain.DirectionBuy, 1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFlowStore_InsertNewAndOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFlowStore(pool)

	batch := []*domain.Flow{
		newFlow("W2", "SigB", 1000, domain.DirectionBuy, 1),
		newFlow("W1", "SigB", 1000, domain.DirectionBuy, 1),
		newFlow("W9", "SigA", 1000, domain.DirectionSell, 1),
		newFlow("W0", "SigZ", 900, domain.DirectionBuy, 1),
	}
	n, err := store.InsertNew(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = store.InsertNew(ctx, append(batch, newFlow("W3", "SigC", 1100, domain.DirectionBuy, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	flows, err := store.GetByTimeRange(ctx, "MintA", 1000, 1000)
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, "W9", flows[0].Wallet)
	assert.Equal(t, "W1", flows[1].Wallet)
	assert.Equal(t, "W2", flows[2].Wallet)

	byWallet, err := store.GetByWallet(ctx, "W0")
	require.NoError(t, err)
	assert.Len(t, byWallet, 1)
}
