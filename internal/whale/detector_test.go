package whale

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
)

const sol = domain.LamportsPerSOL

func buy(wallet string, ts int64, amount int64, sig string) *domain.Flow {
	return &domain.Flow{Wallet: wallet, Timestamp: ts, Direction: domain.DirectionBuy, Amount: amount, Signature: sig}
}

func sell(wallet string, ts int64, amount int64, sig string) *domain.Flow {
	return &domain.Flow{Wallet: wallet, Timestamp: ts, Direction: domain.DirectionSell, Amount: amount, Signature: sig}
}

func eventsOfType(events []domain.WhaleEvent, eventType string) []domain.WhaleEvent {
	var out []domain.WhaleEvent
	for _, ev := range events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestDetector_Cumulative24hCrossing(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	first := d.Process(buy("W", 1000, 15*sol, "A"))
	require.Len(t, first, 1)
	assert.Equal(t, domain.EventWhaleTxBuy, first[0].EventType)

	second := d.Process(buy("W", 1050, 40*sol, "B"))
	require.Len(t, second, 2)
	assert.Equal(t, domain.EventWhaleTxBuy, second[0].EventType)

	cum := second[1]
	assert.Equal(t, domain.EventWhaleCum24hBuy, cum.EventType)
	assert.Equal(t, domain.Window24h, cum.Window)
	assert.Equal(t, int64(55*sol), cum.Amount)
	assert.Equal(t, 2, cum.SupportingFlows)
	assert.Equal(t, "B", cum.FlowRef)
	assert.Equal(t, int64(1050), cum.EventTime)

	assert.Empty(t, eventsOfType(d.Events(), domain.EventWhaleCum7dBuy))
}

func TestDetector_SingleTxOnly(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	events := d.Process(buy("W", 1000, 12*sol, "S1"))
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, domain.EventWhaleTxBuy, ev.EventType)
	assert.Equal(t, domain.WindowLifetime, ev.Window)
	assert.Equal(t, int64(12*sol), ev.Amount)
	assert.Equal(t, 1, ev.SupportingFlows)
	assert.Equal(t, "S1", ev.FlowRef)

	assert.Empty(t, d.Process(buy("W", 1001, 9*sol, "S2")))
}

func TestDetector_DirectionsDoNotMix(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	d.Process(buy("W", 1000, 30*sol, "A"))
	d.Process(sell("W", 1001, 30*sol, "B"))

	assert.Empty(t, eventsOfType(d.Events(), domain.EventWhaleCum24hBuy))
	assert.Empty(t, eventsOfType(d.Events(), domain.EventWhaleCum24hSell))
	assert.Len(t, eventsOfType(d.Events(), domain.EventWhaleTxSell), 1)
}

func TestDetector_LatchSuppressesSameTimestamp(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	d.Process(buy("W", 1000, 30*sol, "A"))
	crossed := eventsOfType(d.Process(buy("W", 1000, 30*sol, "B")), domain.EventWhaleCum24hBuy)
	require.Len(t, crossed, 1)
	assert.Equal(t, "B", crossed[0].FlowRef)
	assert.Equal(t, int64(60*sol), crossed[0].Amount)

	// Same timestamp, still above threshold: latched.
	assert.Empty(t, eventsOfType(d.Process(buy("W", 1000, 30*sol, "C")), domain.EventWhaleCum24hBuy))

	// New timestamp while still above: emits again, crossing entry unchanged.
	again := eventsOfType(d.Process(buy("W", 1100, 1*sol, "D")), domain.EventWhaleCum24hBuy)
	require.Len(t, again, 1)
	assert.Equal(t, "B", again[0].FlowRef)
	assert.Equal(t, int64(60*sol), again[0].Amount)
	assert.Equal(t, 2, again[0].SupportingFlows)
	assert.Equal(t, int64(1100), again[0].EventTime)
}

func TestDetector_ResetAfterDroppingBelow(t *testing.T) {
	th := Thresholds{
		SingleTx: 1000 * sol,
		Windows: []WindowSpec{
			{Window: domain.Window5m, Duration: Window5mSeconds, Threshold: 10, EventPrefix: domain.EventPrefixCum5m},
		},
	}
	d := NewDetector(th)

	require.Len(t, d.Process(buy("W", 100, 10, "A")), 1)

	// t=100 expires, sum 1 < 10: anchor cleared.
	assert.Empty(t, d.Process(buy("W", 500, 1, "B")))

	events := d.Process(buy("W", 600, 10, "C"))
	require.Len(t, events, 1)
	assert.Equal(t, "WHALE_CUM_5M_BUY", events[0].EventType)
	assert.Equal(t, "C", events[0].FlowRef)
	assert.Equal(t, int64(11), events[0].Amount)
	assert.Equal(t, 2, events[0].SupportingFlows)
}

func TestDetector_Idempotent(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	flows := []*domain.Flow{
		buy("W", 1000, 15*sol, "A"),
		buy("W", 1050, 40*sol, "B"),
	}

	first := d.ProcessAll(flows)
	second := d.ProcessAll(flows)

	assert.Len(t, first, 3)
	assert.Empty(t, second)
	assert.Len(t, d.Events(), 3)

	stats := d.Stats()
	assert.Equal(t, 2, stats.FlowsProcessed)
	assert.Equal(t, 2, stats.FlowsDuplicate)
	assert.Equal(t, 1, stats.WalletStates)
}

func TestDetector_SkipsMalformed(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	assert.Nil(t, d.Process(nil))
	assert.Nil(t, d.Process(&domain.Flow{Wallet: "W", Timestamp: 1, Direction: "HOLD", Amount: 100 * sol, Signature: "X"}))
	assert.Nil(t, d.Process(&domain.Flow{Timestamp: 1, Direction: domain.DirectionBuy, Amount: 100 * sol, Signature: "X"}))
	assert.Equal(t, 3, d.Stats().FlowsSkipped)
}

// randomFlows builds an ordered flow table over a few wallets with repeated
// timestamps so latches and expirations are exercised.
func randomFlows(seed int64, n int) []*domain.Flow {
	rng := rand.New(rand.NewSource(seed))
	wallets := []string{"W1", "W2", "W3", "W4"}

	flows := make([]*domain.Flow, 0, n)
	ts := int64(1_700_000_000)
	for i := 0; i < n; i++ {
		ts += int64(rng.Intn(4)) * int64(rng.Intn(20_000))
		dir := domain.DirectionBuy
		if rng.Intn(2) == 0 {
			dir = domain.DirectionSell
		}
		flows = append(flows, &domain.Flow{
			Wallet:    wallets[rng.Intn(len(wallets))],
			Timestamp: ts,
			Direction: dir,
			Amount:    int64(rng.Intn(25)) * sol,
			Signature: fmt.Sprintf("sig-%05d", i),
		})
	}
	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].Timestamp != flows[j].Timestamp {
			return flows[i].Timestamp < flows[j].Timestamp
		}
		return flows[i].Signature < flows[j].Signature
	})
	return flows
}

func keySet(events []domain.WhaleEvent) map[domain.WhaleEventKey]domain.WhaleEvent {
	out := make(map[domain.WhaleEventKey]domain.WhaleEvent, len(events))
	for _, ev := range events {
		out[ev.Key()] = ev
	}
	return out
}

func TestBuildEvents_MatchesStreaming(t *testing.T) {
	for _, th := range []Thresholds{DefaultThresholds(), DynamicThresholds(DefaultLiquiditySOL)} {
		flows := randomFlows(42, 1500)

		d := NewDetector(th)
		streamed := d.ProcessAll(flows)
		batch := BuildEvents(flows, th)

		require.NotEmpty(t, streamed)
		assert.Equal(t, len(streamed), len(batch))
		assert.Equal(t, keySet(streamed), keySet(batch))
	}
}

func TestDetector_EventKeysUnique(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	events := d.ProcessAll(randomFlows(99, 2000))

	assert.Equal(t, len(events), len(keySet(events)))
}

func TestBuildEvents_DropsDuplicateFlows(t *testing.T) {
	flows := []*domain.Flow{
		buy("W", 1000, 30*sol, "A"),
		buy("W", 1000, 30*sol, "A"),
		buy("W", 1010, 5*sol, "B"),
	}

	events := BuildEvents(flows, DefaultThresholds())
	// WHALE_TX_BUY for A only; 30 + 5 stays below 50.
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventWhaleTxBuy, events[0].EventType)
}
