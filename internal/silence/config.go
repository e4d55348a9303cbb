// Package silence detects wallets that stop participating in a token while
// the token keeps trading. Detection is event-driven: every check runs on a
// wallet trade, on token activity or on a lifecycle transition, never on a
// timer.
package silence

// Config holds silence detection parameters. Times are in seconds.
type Config struct {
	CohortWindow         int64   // idle time after which a wallet counts as silent
	HistoryWindow        int64   // trade history retained per wallet
	EarlyWindow          int64   // first-seen offset from token birth for early wallets
	MinTradesForRate     int     // lifetime trades required for a drop check
	DropThreshold        float64 // relative rate drop that reports ACTIVITY_DROP
	RecentWindow         int64   // window for the recent trade rate
	MinBaselineRate      float64 // trades per minute
	MinLifetimeMinutes   float64
	MinRecentSpanMinutes float64
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		CohortWindow:         120,
		HistoryWindow:        300,
		EarlyWindow:          300,
		MinTradesForRate:     5,
		DropThreshold:        0.85,
		RecentWindow:         180,
		MinBaselineRate:      0.5,
		MinLifetimeMinutes:   1,
		MinRecentSpanMinutes: 0.5,
	}
}
