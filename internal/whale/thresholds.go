package whale

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"wallet-signal-lab/internal/domain"
)

// Window durations in seconds.
const (
	Window5mSeconds  int64 = 300
	Window15mSeconds int64 = 900
	Window24hSeconds int64 = 86_400
	Window7dSeconds  int64 = 604_800
)

// Fixed thresholds in lamports.
const (
	DefaultSingleTxThreshold = 10 * domain.LamportsPerSOL
	DefaultCum24hThreshold   = 50 * domain.LamportsPerSOL
	DefaultCum7dThreshold    = 200 * domain.LamportsPerSOL
)

// WindowSpec configures one cumulative window.
type WindowSpec struct {
	Window      domain.Window // tag written to emitted events
	Duration    int64         // seconds
	Threshold   int64         // lamports
	EventPrefix string        // e.g. WHALE_CUM_24H
}

// Thresholds is the injected detector configuration shared by the fixed and
// the liquidity-derived deployment modes.
type Thresholds struct {
	SingleTx int64 // lamports
	Windows  []WindowSpec
}

// DefaultThresholds returns the fixed 10 / 50 / 200 SOL configuration over
// 24h and 7d windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SingleTx: DefaultSingleTxThreshold,
		Windows: []WindowSpec{
			{Window: domain.Window24h, Duration: Window24hSeconds, Threshold: DefaultCum24hThreshold, EventPrefix: domain.EventPrefixCum24h},
			{Window: domain.Window7d, Duration: Window7dSeconds, Threshold: DefaultCum7dThreshold, EventPrefix: domain.EventPrefixCum7d},
		},
	}
}

// Validate checks that every threshold and duration is positive and window
// tags are unique.
func (t Thresholds) Validate() error {
	if t.SingleTx <= 0 {
		return errors.New("single-tx threshold must be positive")
	}
	seen := make(map[domain.Window]struct{}, len(t.Windows))
	for _, w := range t.Windows {
		if w.Duration <= 0 || w.Threshold <= 0 {
			return fmt.Errorf("window %s: duration and threshold must be positive", w.Window)
		}
		if w.EventPrefix == "" {
			return fmt.Errorf("window %s: missing event prefix", w.Window)
		}
		if _, dup := seen[w.Window]; dup {
			return fmt.Errorf("window %s configured twice", w.Window)
		}
		seen[w.Window] = struct{}{}
	}
	return nil
}

// Liquidity-derived threshold parameters (SOL).
var (
	DefaultLiquiditySOL = decimal.NewFromInt(50)

	singleTxPct = decimal.RequireFromString("0.005")
	cum5mPct    = decimal.RequireFromString("0.01")
	cum15mPct   = decimal.RequireFromString("0.02")

	minSingleTx = decimal.RequireFromString("0.1")
	maxSingleTx = decimal.NewFromInt(100)
	minCum5m    = decimal.RequireFromString("0.5")
	maxCum5m    = decimal.NewFromInt(250)
	minCum15m   = decimal.NewFromInt(1)
	maxCum15m   = decimal.NewFromInt(500)

	lamportsPerSOL = decimal.NewFromInt(domain.LamportsPerSOL)
)

// DynamicThresholds derives thresholds from pool liquidity: 0.5% single-tx,
// 1% over 5 minutes and 2% over 15 minutes, each clamped to fixed SOL bounds.
// Non-positive liquidity falls back to DefaultLiquiditySOL.
func DynamicThresholds(liquiditySOL decimal.Decimal) Thresholds {
	if !liquiditySOL.IsPositive() {
		liquiditySOL = DefaultLiquiditySOL
	}

	single := clamp(liquiditySOL.Mul(singleTxPct), minSingleTx, maxSingleTx)
	cum5m := clamp(liquiditySOL.Mul(cum5mPct), minCum5m, maxCum5m)
	cum15m := clamp(liquiditySOL.Mul(cum15mPct), minCum15m, maxCum15m)

	return Thresholds{
		SingleTx: SOLToLamports(single),
		Windows: []WindowSpec{
			{Window: domain.Window5m, Duration: Window5mSeconds, Threshold: SOLToLamports(cum5m), EventPrefix: domain.EventPrefixCum5m},
			{Window: domain.Window15m, Duration: Window15mSeconds, Threshold: SOLToLamports(cum15m), EventPrefix: domain.EventPrefixCum15m},
		},
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(v, hi))
}

// SOLToLamports converts a SOL amount to lamports, truncating sub-lamport dust.
func SOLToLamports(sol decimal.Decimal) int64 {
	return sol.Mul(lamportsPerSOL).IntPart()
}

// LamportsToSOL converts lamports to an exact SOL decimal.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}

// String renders thresholds in SOL for logs.
func (t Thresholds) String() string {
	s := fmt.Sprintf("single_tx=%s SOL", LamportsToSOL(t.SingleTx).String())
	for _, w := range t.Windows {
		s += fmt.Sprintf(" cum_%s=%s SOL", w.Window, LamportsToSOL(w.Threshold).String())
	}
	return s
}
