package domain

// Silence pattern tags.
const (
	PatternCohortComparison  = "COHORT_COMPARISON"
	PatternStoppedBeforePeak = "STOPPED_BEFORE_PEAK"
	PatternActivityDrop      = "ACTIVITY_DROP"
)

// Non-silent status labels.
const (
	StatusActive       = "ACTIVE"
	StatusActiveAtPeak = "ACTIVE_AT_PEAK"
)

// SilenceStatus is the silence latch of one wallet as reported by a trigger.
type SilenceStatus struct {
	Wallet      string `json:"wallet"`
	IsSilent    bool   `json:"is_silent"`
	Pattern     string `json:"pattern"`
	SilentSince int64  `json:"silent_since,omitempty"` // seconds, 0 when active
}

// SilenceEvent records a wallet entering the silent state.
// Corresponds to silence_events table in PostgreSQL.
type SilenceEvent struct {
	Mint      string // monitored token
	Wallet    string
	Pattern   string // COHORT_COMPARISON | STOPPED_BEFORE_PEAK | ACTIVITY_DROP
	EventTime int64  // seconds
	Trigger   string // wallet_trade | token_activity | state_transition
}

// Silence trigger labels.
const (
	TriggerWalletTrade     = "wallet_trade"
	TriggerTokenActivity   = "token_activity"
	TriggerStateTransition = "state_transition"
)
