package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/solana"
	"wallet-signal-lab/internal/solana/stub"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordFlow(42, 1000, 0.01)
	m.RecordFlow(0, 1001, 0.01)
	m.RecordSkip("duplicate")
	m.RecordWhaleEvent("WHALE_TX_BUY")
	m.RecordWhaleEvent("WHALE_TX_BUY")
	m.RecordSilenceEvent("early_silence")
	m.RecordWalletSignal([]string{"TIMING", "COORDINATION"})
	m.RecordWalletSignal([]string{"TIMING"})
	m.SetWalletCounts("mint1", 10, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FlowsProcessed))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.HighestSlotSeen))
	assert.Equal(t, 1001.0, testutil.ToFloat64(m.LastFlowTimestamp))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsSkipped.WithLabelValues("duplicate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WhaleEvents.WithLabelValues("WHALE_TX_BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SilenceEvents.WithLabelValues("early_silence")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WalletSignals.WithLabelValues("TIMING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WalletSignals.WithLabelValues("COORDINATION")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SilentWallets.WithLabelValues("mint1")))
}

func TestMetrics_TokenStateSingleActive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordTransition("mint1", "TOKEN_IGNITION", "S1")
	m.RecordTransition("mint1", "TOKEN_COORDINATION_SPIKE", "S2")
	m.SetTokenState("mint2", "TOKEN_QUIET")

	assert.Equal(t, 2, testutil.CollectAndCount(m.TokenState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenState.WithLabelValues("mint1", "TOKEN_COORDINATION_SPIKE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("TOKEN_IGNITION", "S1")))
}

func TestInstrumentRPC(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	node := stub.NewRPCClient()
	node.AddTransaction(&solana.Transaction{Signature: "sig", Slot: 7})
	rpc := InstrumentRPC(node, m)

	slot, err := rpc.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), slot)

	_, err = rpc.GetTransaction(context.Background(), "sig")
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.RPCCallLatency))
}
