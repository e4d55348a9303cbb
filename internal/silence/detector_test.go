package silence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-signal-lab/internal/domain"
)

func newTestDetector() *Detector {
	return NewDetector("MINT", DefaultConfig())
}

// trade mirrors the live order: the wallet trigger, then the token trigger.
func trade(d *Detector, wallet string, ts int64, dir domain.Direction) map[string]domain.SilenceStatus {
	d.OnWalletTrade(wallet, ts, dir)
	return d.OnTokenActivity(ts)
}

func TestDetector_SellAfterBuyGoesSilent(t *testing.T) {
	d := newTestDetector()

	trade(d, "W", 1000, domain.DirectionBuy)
	trade(d, "W", 1010, domain.DirectionSell)

	statuses := trade(d, "X", 1210, domain.DirectionBuy)

	require.Contains(t, statuses, "W")
	assert.True(t, statuses["W"].IsSilent)
	assert.Equal(t, domain.PatternCohortComparison, statuses["W"].Pattern)
	assert.Equal(t, int64(1210), statuses["W"].SilentSince)
	assert.False(t, statuses["X"].IsSilent)
	assert.Equal(t, domain.StatusActive, statuses["X"].Pattern)
}

func TestDetector_CohortSilenceThenBuyThenSell(t *testing.T) {
	d := newTestDetector()

	trade(d, "W", 1000, domain.DirectionBuy)
	var statuses map[string]domain.SilenceStatus
	for ts := int64(1010); ts <= 1130; ts += 10 {
		statuses = trade(d, "X", ts, domain.DirectionBuy)
	}

	// 130s idle while the token trades every 10s.
	assert.True(t, statuses["W"].IsSilent)
	assert.Equal(t, domain.PatternCohortComparison, statuses["W"].Pattern)
	assert.Equal(t, int64(1120), statuses["W"].SilentSince, "first detection keeps silent_since")

	// A BUY re-engages.
	statuses = trade(d, "W", 1140, domain.DirectionBuy)
	assert.False(t, statuses["W"].IsSilent)
	assert.Equal(t, domain.StatusActive, statuses["W"].Pattern)

	for ts := int64(1150); ts <= 1260; ts += 10 {
		statuses = trade(d, "X", ts, domain.DirectionBuy)
	}
	require.True(t, statuses["W"].IsSilent)

	// Selling while silent never un-silences.
	statuses = trade(d, "W", 1270, domain.DirectionSell)
	assert.True(t, statuses["W"].IsSilent)
	assert.Equal(t, domain.PatternCohortComparison, statuses["W"].Pattern)
	assert.Equal(t, int64(1260), statuses["W"].SilentSince)

	ws, ok := d.Wallet("W")
	require.True(t, ok)
	assert.Equal(t, 3, ws.LifetimeTrades)
	assert.Equal(t, domain.DirectionSell, ws.LastDirection)
}

func TestDetector_RecentBuyerIsActive(t *testing.T) {
	d := newTestDetector()

	trade(d, "W", 1000, domain.DirectionBuy)
	statuses := trade(d, "X", 1119, domain.DirectionBuy)

	assert.False(t, statuses["W"].IsSilent)
}

func TestDetector_CohortBoundaryIsInclusive(t *testing.T) {
	d := newTestDetector()

	trade(d, "W", 1000, domain.DirectionBuy)
	statuses := trade(d, "X", 1119, domain.DirectionBuy)
	require.False(t, statuses["W"].IsSilent, "119s idle")

	statuses = trade(d, "X", 1120, domain.DirectionBuy)
	assert.True(t, statuses["W"].IsSilent, "exactly 120s idle")
	assert.Equal(t, domain.PatternCohortComparison, statuses["W"].Pattern)
	assert.Equal(t, int64(1120), statuses["W"].SilentSince)
}

func TestDetector_OnStateTransition(t *testing.T) {
	d := newTestDetector()

	trade(d, "A", 1000, domain.DirectionBuy)
	trade(d, "B", 1100, domain.DirectionBuy)
	trade(d, "C", 1150, domain.DirectionBuy)
	// A idle for 150s: already silent via cohort comparison.
	trade(d, "C", 1150, domain.DirectionBuy)
	statuses := d.OnTokenActivity(1150)
	require.True(t, statuses["A"].IsSilent)

	assert.Empty(t, d.OnStateTransition(domain.TokenExhaustionDetected, 1150))

	statuses = d.OnStateTransition(domain.TokenPressurePeaking, 1150)
	require.Len(t, statuses, 3)

	assert.Equal(t, domain.PatternCohortComparison, statuses["A"].Pattern, "existing pattern is kept")
	assert.True(t, statuses["B"].IsSilent)
	assert.Equal(t, domain.PatternStoppedBeforePeak, statuses["B"].Pattern)
	assert.Equal(t, int64(1150), statuses["B"].SilentSince)
	assert.False(t, statuses["C"].IsSilent)
	assert.Equal(t, domain.StatusActiveAtPeak, statuses["C"].Pattern)

	events := d.DrainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, domain.SilenceEvent{Mint: "MINT", Wallet: "A", Pattern: domain.PatternCohortComparison, EventTime: 1150, Trigger: domain.TriggerTokenActivity}, events[0])
	assert.Equal(t, domain.SilenceEvent{Mint: "MINT", Wallet: "B", Pattern: domain.PatternStoppedBeforePeak, EventTime: 1150, Trigger: domain.TriggerStateTransition}, events[1])
	assert.Empty(t, d.DrainEvents())
}

func TestDetector_CheckActivityDrop(t *testing.T) {
	tests := []struct {
		name      string
		trades    []int64
		at        int64
		want      string
		wantDrop  bool
		wallet    string
		dropAbove float64
	}{
		{name: "unknown wallet", wallet: "nobody", at: 2000, want: DropNoHistory},
		{name: "insufficient history", trades: []int64{1000, 1010, 1020, 1030}, at: 2000, want: DropInsufficientHistory},
		{name: "too recent", trades: []int64{1000, 1005, 1010, 1015, 1020}, at: 1030, want: DropTooRecent},
		{name: "recent too short", trades: []int64{1000, 1001, 1002, 1200, 1210}, at: 1300, want: DropRecentTooShort},
		{name: "low baseline", trades: []int64{1000, 1010, 1020, 1030, 1040}, at: 2200, want: DropLowBaseline},
		{name: "drop detected", trades: []int64{1000, 1010, 1020, 1030, 1040}, at: 1600, want: DropDetected, wantDrop: true, dropAbove: 0.99},
		{name: "still active", trades: []int64{1000, 1010, 1020, 1030, 1040}, at: 1060, want: DropActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector()
			for _, ts := range tt.trades {
				d.OnWalletTrade("W", ts, domain.DirectionBuy)
			}
			wallet := tt.wallet
			if wallet == "" {
				wallet = "W"
			}

			res := d.CheckActivityDrop(wallet, tt.at)
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.wantDrop, res.Silent)
			if tt.wantDrop {
				assert.GreaterOrEqual(t, res.DropPct, tt.dropAbove)
			}

			// Informational only.
			if ws, ok := d.Wallet(wallet); ok {
				assert.False(t, ws.IsSilent)
			}
		})
	}
}

func TestDetector_ApplyActivityDrop(t *testing.T) {
	d := newTestDetector()
	for _, ts := range []int64{1000, 1010, 1020, 1030, 1040} {
		d.OnWalletTrade("W", ts, domain.DirectionBuy)
	}

	res := d.ApplyActivityDrop("W", 1600)
	require.True(t, res.Silent)

	ws, _ := d.Wallet("W")
	assert.True(t, ws.IsSilent)
	assert.Equal(t, domain.PatternActivityDrop, ws.Pattern)
	assert.Equal(t, int64(1600), ws.SilentSince)

	events := d.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.TriggerWalletTrade, events[0].Trigger)
}

func TestDetector_HistoryBounded(t *testing.T) {
	d := newTestDetector()
	for ts := int64(1000); ts <= 2000; ts += 50 {
		d.OnWalletTrade("W", ts, domain.DirectionBuy)
	}

	ws, _ := d.Wallet("W")
	for _, ts := range ws.History() {
		assert.GreaterOrEqual(t, ts, int64(1700))
	}
	assert.Equal(t, 21, ws.LifetimeTrades)
}

func TestDetector_SummaryAndEarlyWallets(t *testing.T) {
	d := newTestDetector()

	trade(d, "E1", 1000, domain.DirectionBuy)
	trade(d, "E2", 1100, domain.DirectionBuy)
	trade(d, "E3", 1300, domain.DirectionBuy)
	trade(d, "L1", 1301, domain.DirectionBuy)

	assert.True(t, d.IsEarly("E3"))
	assert.False(t, d.IsEarly("L1"))
	assert.False(t, d.IsEarly("missing"))

	// E1 idle 301s, E2 idle 201s.
	s := d.Summary()
	assert.Equal(t, Summary{Silent: 2, Eligible: 4, Pct: 0.5}, s)

	assert.True(t, d.IsSilent("E1"))
	assert.True(t, d.IsSilent("E2"))
	assert.False(t, d.IsSilent("E3"))
	assert.False(t, d.IsSilent("missing"))

	assert.Len(t, d.Statuses(), 4)
}

func TestDetector_SummaryEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, newTestDetector().Summary())
}
