package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

func newWhaleEvent(wallet string, ts int64, ref string) *domain.WhaleEvent {
	return &domain.WhaleEvent{
		Wallet:          wallet,
		Window:          domain.Window24h,
		EventType:       domain.EventWhaleCum24hBuy,
		EventTime:       ts,
		FlowRef:         ref,
		Amount:          55 * domain.LamportsPerSOL,
		SupportingFlows: 2,
	}
}

func TestWhaleEventStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWhaleEventStore(pool)

	e := newWhaleEvent("W1", 1050, "SigB")
	require.NoError(t, store.Insert(ctx, e))
	assert.ErrorIs(t, store.Insert(ctx, e), storage.ErrDuplicateKey)

	events, err := store.GetByWallet(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, *e, *events[0])
}

func TestWhaleEventStore_InsertBulkAndRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWhaleEventStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.WhaleEvent{
		newWhaleEvent("W2", 3000, "S3"),
		newWhaleEvent("W1", 1000, "S1"),
		newWhaleEvent("W1", 2000, "S2"),
	}))

	err := store.InsertBulk(ctx, []*domain.WhaleEvent{
		newWhaleEvent("W3", 4000, "S4"),
		newWhaleEvent("W1", 1000, "S1"),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1000), all[0].EventTime)

	ranged, err := store.GetByTimeRange(ctx, 1500, 3000)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestWhaleStateStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWhaleStateStore(pool)

	st := &domain.WhaleState{Wallet: "W1", Window: domain.WindowLifetime, TxBuyCount: 1, TxBuyMax: 10}
	require.NoError(t, store.Upsert(ctx, []*domain.WhaleState{st}))

	st.TxBuyCount = 3
	require.NoError(t, store.Upsert(ctx, []*domain.WhaleState{st, {Wallet: "W1", Window: domain.Window24h, CumBuyTotal: 60}}))

	states, err := store.GetByWallet(ctx, "W1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, domain.Window24h, states[0].Window)
	assert.Equal(t, 3, states[1].TxBuyCount)
}
