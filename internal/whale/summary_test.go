package whale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
)

func TestSummarize(t *testing.T) {
	events := []domain.WhaleEvent{
		{Wallet: "W", Window: domain.WindowLifetime, EventType: domain.EventWhaleTxBuy, EventTime: 100, Amount: 12 * sol},
		{Wallet: "W", Window: domain.WindowLifetime, EventType: domain.EventWhaleTxBuy, EventTime: 300, Amount: 20 * sol},
		{Wallet: "W", Window: domain.WindowLifetime, EventType: domain.EventWhaleTxSell, EventTime: 50, Amount: 11 * sol},
		{Wallet: "W", Window: domain.Window24h, EventType: domain.EventWhaleCum24hBuy, EventTime: 300, Amount: 55 * sol},
		{Wallet: "W", Window: domain.Window24h, EventType: domain.EventWhaleCum24hSell, EventTime: 400, Amount: 60 * sol},
		{Wallet: "A", Window: domain.Window7d, EventType: domain.EventWhaleCum7dBuy, EventTime: 900, Amount: 210 * sol},
	}

	states := Summarize(events)
	require.Len(t, states, 3)

	// Sorted by wallet then window tag.
	assert.Equal(t, "A", states[0].Wallet)
	assert.Equal(t, int64(210*sol), states[0].CumBuyTotal)

	lifetime := states[2]
	assert.Equal(t, domain.WindowLifetime, lifetime.Window)
	assert.Equal(t, 2, lifetime.TxBuyCount)
	assert.Equal(t, 1, lifetime.TxSellCount)
	assert.Equal(t, int64(20*sol), lifetime.TxBuyMax)
	assert.Equal(t, int64(11*sol), lifetime.TxSellMax)
	assert.Equal(t, int64(50), lifetime.FirstWhaleTime)
	assert.Equal(t, int64(300), lifetime.LastWhaleTime)
	assert.Zero(t, lifetime.CumBuyTotal)

	day := states[1]
	assert.Equal(t, domain.Window24h, day.Window)
	assert.Equal(t, int64(55*sol), day.CumBuyTotal)
	assert.Equal(t, int64(60*sol), day.CumSellTotal)
	assert.Zero(t, day.TxBuyCount)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
