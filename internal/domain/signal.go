package domain

// Wallet signal kinds.
const (
	SignalTiming       = "TIMING"
	SignalCoordination = "COORDINATION"
	SignalPersistence  = "PERSISTENCE"
	SignalExhaustion   = "EXHAUSTION"
)

// Coordination sides.
const (
	CoordinationBuy   = "buy"
	CoordinationSell  = "sell"
	CoordinationMixed = "mixed"
)

// Transition severities, weakest first.
const (
	SeverityWeak     = "S1"
	SeverityLight    = "S2"
	SeverityModerate = "S3"
	SeverityStrong   = "S4"
	SeverityExtreme  = "S5"
)

// TimingSignal tells whether a wallet entered within the early window of the
// current wave.
type TimingSignal struct {
	IsEarly      bool  `json:"is_early"`
	DeltaSeconds int64 `json:"delta_seconds"` // first_seen - wave start
}

// CoordinationSignal describes a cluster of whale wallets inside the
// coordination window.
type CoordinationSignal struct {
	WalletCount   int      `json:"wallet_count"`
	Direction     string   `json:"direction"` // buy | sell | mixed
	WindowSeconds int64    `json:"window_seconds"`
	SampleWallets []string `json:"sample_wallets,omitempty"`
}

// PersistenceSignal describes a wallet seen across several minute buckets.
type PersistenceSignal struct {
	Appearances   int   `json:"appearances"`
	MaxGapSeconds int64 `json:"max_gap_seconds"`
}

// ExhaustionSignal describes the silent share of the wave's early wallets.
type ExhaustionSignal struct {
	DisengagementPct float64 `json:"disengagement_pct"`
	SilentEarly      int     `json:"silent_early"`
	TotalEarly       int     `json:"total_early"`
}

// SignalDetails carries the context of every signal in a WalletSignal.
type SignalDetails struct {
	Timing       *TimingSignal       `json:"timing,omitempty"`
	Coordination *CoordinationSignal `json:"coordination,omitempty"`
	Persistence  *PersistenceSignal  `json:"persistence,omitempty"`
	Exhaustion   *ExhaustionSignal   `json:"exhaustion,omitempty"`
}

// WalletSignal is a behavioural observation about a whale wallet, or about
// the token as a whole for EXHAUSTION (Wallet is empty then).
// Corresponds to wallet_signals table in PostgreSQL.
type WalletSignal struct {
	Mint      string
	Wallet    string
	EventTime int64  // seconds
	FlowRef   string // signature of the flow that produced the signal
	EpisodeID int
	Signals   []string
	Details   SignalDetails
}

// Has reports whether the event carries the given signal kind.
func (s *WalletSignal) Has(kind string) bool {
	for _, k := range s.Signals {
		if k == kind {
			return true
		}
	}
	return false
}
