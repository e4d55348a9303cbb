package domain

// Window is the time scope a whale event was measured over.
type Window string

const (
	WindowLifetime Window = "lifetime"
	Window24h      Window = "24h"
	Window7d       Window = "7d"
	Window5m       Window = "5m"
	Window15m      Window = "15m"
)

// String returns the string representation of Window.
func (w Window) String() string {
	return string(w)
}

// Event type prefixes. The full event type is prefix + "_" + direction.
const (
	EventPrefixTx     = "WHALE_TX"
	EventPrefixCum24h = "WHALE_CUM_24H"
	EventPrefixCum7d  = "WHALE_CUM_7D"
	EventPrefixCum5m  = "WHALE_CUM_5M"
	EventPrefixCum15m = "WHALE_CUM_15M"
)

// Whale event types for the fixed-threshold windows.
const (
	EventWhaleTxBuy      = EventPrefixTx + "_BUY"
	EventWhaleTxSell     = EventPrefixTx + "_SELL"
	EventWhaleCum24hBuy  = EventPrefixCum24h + "_BUY"
	EventWhaleCum24hSell = EventPrefixCum24h + "_SELL"
	EventWhaleCum7dBuy   = EventPrefixCum7d + "_BUY"
	EventWhaleCum7dSell  = EventPrefixCum7d + "_SELL"
)

// EventType joins an event prefix and a direction.
func EventType(prefix string, d Direction) string {
	return prefix + "_" + string(d)
}

// WhaleEvent is a single-transaction or windowed cumulative threshold crossing.
// Corresponds to whale_events table in PostgreSQL.
type WhaleEvent struct {
	Wallet          string // wallet address
	Mint            string // token mint, empty for chain-wide runs
	Window          Window // lifetime | 24h | 7d | 5m | 15m
	EventType       string // e.g. WHALE_CUM_24H_BUY
	EventTime       int64  // timestamp of the triggering flow (seconds)
	FlowRef         string // signature of the flow that crossed the threshold
	Amount          int64  // amount or window prefix sum at crossing (lamports)
	SupportingFlows int    // 1 for single-tx events, prefix count for cumulative
}

// WhaleEventKey is the identity of a whale event.
type WhaleEventKey struct {
	Wallet    string
	Window    Window
	EventType string
	EventTime int64
	FlowRef   string
}

// Key returns the identity key of the event.
func (e *WhaleEvent) Key() WhaleEventKey {
	return WhaleEventKey{
		Wallet:    e.Wallet,
		Window:    e.Window,
		EventType: e.EventType,
		EventTime: e.EventTime,
		FlowRef:   e.FlowRef,
	}
}

// Direction returns the side encoded in the event type.
func (e *WhaleEvent) Direction() Direction {
	n := len(e.EventType)
	switch {
	case n > 4 && e.EventType[n-4:] == "_BUY":
		return DirectionBuy
	case n > 5 && e.EventType[n-5:] == "_SELL":
		return DirectionSell
	}
	return ""
}

// IsSingleTx reports whether the event is a single-transaction crossing.
func (e *WhaleEvent) IsSingleTx() bool {
	return e.Window == WindowLifetime
}

// WhaleState is the per (wallet, window) aggregate over whale events.
// Corresponds to whale_states table in PostgreSQL.
type WhaleState struct {
	Wallet         string
	Window         Window
	TxBuyCount     int
	TxSellCount    int
	TxBuyMax       int64 // lamports
	TxSellMax      int64 // lamports
	CumBuyTotal    int64 // lamports
	CumSellTotal   int64 // lamports
	FirstWhaleTime int64 // seconds
	LastWhaleTime  int64 // seconds
}

// WhaleEventLess orders events by event_time, wallet, window, event_type, flow_ref ASC.
func WhaleEventLess(a, b *WhaleEvent) bool {
	if a.EventTime != b.EventTime {
		return a.EventTime < b.EventTime
	}
	if a.Wallet != b.Wallet {
		return a.Wallet < b.Wallet
	}
	if a.Window != b.Window {
		return a.Window < b.Window
	}
	if a.EventType != b.EventType {
		return a.EventType < b.EventType
	}
	return a.FlowRef < b.FlowRef
}
