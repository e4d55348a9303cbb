// Package lifecycle tracks the macro state of one monitored token from the
// whale events and silence data produced for it.
package lifecycle

import "wallet-signal-lab/internal/domain"

// Transition triggers.
const (
	TriggerEpisodeEnd         = "episode_end"
	TriggerNewEpisode         = "new_episode"
	TriggerReignition         = "re_ignition_same_episode"
	TriggerCoordinated        = "coordinated_early_wallets"
	TriggerSustained          = "sustained_beyond_burst"
	TriggerPersistent         = "persistent_wallets"
	TriggerNewParticipants    = "new_non_early_wallets"
	TriggerDensityPeak        = "whale_density_episode_max"
	TriggerEarlySilent        = "early_wallets_silent"
	TriggerActivityCollapsed  = "activity_collapsed"
	TriggerBurstReversal      = "whale_burst_reversal"
	TriggerSuddenReactivation = "sudden_reactivation"
)

// Config holds lifecycle thresholds. Times are in seconds.
type Config struct {
	EpisodeEndSilence      int64
	ReignitionGap          int64
	CoordinationMinWallets int
	CoordinationDwell      int64
	PersistenceMinWallets  int
	PersistenceMinBuckets  int
	ExpansionLookback      int64
	PeakingMinWhales       int
	PeakingWindow          int64
	ExhaustionEarlyPct     float64
	DissipationLookback    int64
	ReversalLookback       int64
	ReversalMinWhales      int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		EpisodeEndSilence:      600,
		ReignitionGap:          600,
		CoordinationMinWallets: 3,
		CoordinationDwell:      120,
		PersistenceMinWallets:  2,
		PersistenceMinBuckets:  2,
		ExpansionLookback:      300,
		PeakingMinWhales:       5,
		PeakingWindow:          120,
		ExhaustionEarlyPct:     0.60,
		DissipationLookback:    300,
		ReversalLookback:       60,
		ReversalMinWhales:      2,
	}
}

// CohortView is the wallet timing data the tracker reads. Coordination
// counts every wallet timed early; exhaustion looks at the current wave only.
// The tracker opens a new wave whenever a new episode starts.
type CohortView interface {
	EarlyCount() int
	IsEarly(wallet string) bool
	WaveExhaustion() (domain.ExhaustionSignal, bool)
	StartEpisode(episodeID int, ts int64)
}

type walletActivity struct {
	lastSeen      int64
	lastWhaleTime int64
	hasWhale      bool
	buckets       map[int64]struct{} // distinct minute buckets with trades
}

type whaleHit struct {
	time   int64
	wallet string
}

// Tracker is the nine-state token lifecycle machine.
// Not safe for concurrent use.
type Tracker struct {
	cfg      Config
	mint     string
	cohort   CohortView
	severity severityScale

	state          domain.TokenState
	stateChangedAt int64
	episodeID      int

	lastWhale     int64
	prevWhale     int64 // whale time before lastWhale, lastWhale for the first one
	hasWhale      bool
	ignitionArmed bool
	maxDensity    int

	hits    []whaleHit
	wallets map[string]*walletActivity
}

// NewTracker creates a tracker in TOKEN_QUIET.
func NewTracker(mint string, cfg Config, cohort CohortView) *Tracker {
	return &Tracker{
		cfg:     cfg,
		mint:    mint,
		cohort:  cohort,
		state:   domain.TokenQuiet,
		wallets: make(map[string]*walletActivity),
	}
}

// State returns the current state.
func (t *Tracker) State() domain.TokenState {
	return t.state
}

// EpisodeID returns the current episode, 0 before the first ignition.
func (t *Tracker) EpisodeID() int {
	return t.episodeID
}

// ObserveFlow records trade activity for a wallet.
func (t *Tracker) ObserveFlow(f *domain.Flow) {
	wa := t.wallet(f.Wallet)
	wa.lastSeen = f.Timestamp
	wa.buckets[f.Timestamp/60] = struct{}{}
}

// ObserveWhaleEvent records a whale event for density and episode tracking.
// Events sharing a timestamp count as one for the episode reference.
func (t *Tracker) ObserveWhaleEvent(wallet string, ts int64) {
	switch {
	case !t.hasWhale:
		t.prevWhale = ts
	case ts != t.lastWhale:
		t.prevWhale = t.lastWhale
	}
	t.lastWhale = ts
	t.hasWhale = true
	t.ignitionArmed = true

	wa := t.wallet(wallet)
	wa.lastWhaleTime = ts
	wa.hasWhale = true

	t.hits = append(t.hits, whaleHit{time: ts, wallet: wallet})
	t.expireHits(ts)
}

// Evaluate checks for at most one transition at time ts. The episode
// boundary has priority, then forward transitions, then reversals.
//
// The episode ends once ts is at least EpisodeEndSilence past the whale
// before the latest one. Leaving QUIET, a whale within ReignitionGap of its
// predecessor resumes the episode; otherwise a new episode starts.
func (t *Tracker) Evaluate(ts int64) (domain.StateTransition, bool) {
	if t.hasWhale && t.state != domain.TokenQuiet && ts-t.prevWhale >= t.cfg.EpisodeEndSilence {
		// a whale that arrived at ts itself still ignites the next episode
		t.ignitionArmed = t.lastWhale == ts
		return t.transition(domain.TokenQuiet, TriggerEpisodeEnd, ts, measure{}), true
	}

	switch t.state {
	case domain.TokenQuiet:
		if !t.ignitionArmed {
			break
		}
		trigger := TriggerNewEpisode
		if t.episodeID > 0 && ts-t.prevWhale < t.cfg.ReignitionGap {
			trigger = TriggerReignition
		} else {
			t.startEpisode(ts)
		}
		return t.transition(domain.TokenIgnition, trigger, ts, measure{}), true

	case domain.TokenIgnition:
		if n := t.cohort.EarlyCount(); n >= t.cfg.CoordinationMinWallets {
			return t.transition(domain.TokenCoordinationSpike, TriggerCoordinated, ts, measure{count: n}), true
		}

	case domain.TokenCoordinationSpike:
		if d := ts - t.stateChangedAt; d >= t.cfg.CoordinationDwell {
			return t.transition(domain.TokenEarlyPhase, TriggerSustained, ts, measure{duration: d}), true
		}

	case domain.TokenEarlyPhase:
		if n := t.countPersistentWallets(); n >= t.cfg.PersistenceMinWallets {
			return t.transition(domain.TokenPersistenceConfirmed, TriggerPersistent, ts, measure{count: n}), true
		}

	case domain.TokenPersistenceConfirmed:
		if n := t.countRecentNonEarly(ts); n > 0 {
			return t.transition(domain.TokenParticipationExpansion, TriggerNewParticipants, ts, measure{count: n}), true
		}

	case domain.TokenParticipationExpansion:
		n := t.densityAt(ts)
		if n >= t.cfg.PeakingMinWhales && n > t.maxDensity {
			t.maxDensity = n
			return t.transition(domain.TokenPressurePeaking, TriggerDensityPeak, ts, measure{count: n}), true
		}

	case domain.TokenPressurePeaking:
		if ex, ok := t.cohort.WaveExhaustion(); ok {
			return t.transition(domain.TokenExhaustionDetected, TriggerEarlySilent, ts, measure{pct: ex.DisengagementPct}), true
		}

	case domain.TokenExhaustionDetected:
		if n := t.countRecentWhales(ts, t.cfg.DissipationLookback); n == 0 {
			return t.transition(domain.TokenDissipation, TriggerActivityCollapsed, ts, measure{}), true
		}
		if n := t.countRecentWhales(ts, t.cfg.ReversalLookback); n >= t.cfg.ReversalMinWhales {
			return t.transition(domain.TokenParticipationExpansion, TriggerBurstReversal, ts, measure{count: n}), true
		}

	case domain.TokenDissipation:
		if t.countRecentWhales(ts, t.cfg.ReversalLookback) >= 1 {
			return t.transition(domain.TokenIgnition, TriggerSuddenReactivation, ts, measure{}), true
		}
	}

	return domain.StateTransition{}, false
}

func (t *Tracker) transition(to domain.TokenState, trigger string, ts int64, m measure) domain.StateTransition {
	tr := domain.StateTransition{
		Mint:      t.mint,
		EpisodeID: t.episodeID,
		From:      t.state,
		To:        to,
		Trigger:   trigger,
		Time:      ts,
		Severity:  t.severity.rate(to, trigger, m, t.cohort.EarlyCount()),
	}
	t.state = to
	t.stateChangedAt = ts
	return tr
}

func (t *Tracker) startEpisode(ts int64) {
	t.episodeID++
	t.maxDensity = 0
	t.hits = t.hits[:0]
	t.severity.reset()
	t.cohort.StartEpisode(t.episodeID, ts)
}

func (t *Tracker) wallet(addr string) *walletActivity {
	wa, ok := t.wallets[addr]
	if !ok {
		wa = &walletActivity{buckets: make(map[int64]struct{})}
		t.wallets[addr] = wa
	}
	return wa
}

func (t *Tracker) expireHits(now int64) {
	cutoff := now - t.cfg.PeakingWindow
	i := 0
	for i < len(t.hits) && t.hits[i].time < cutoff {
		i++
	}
	if i > 0 {
		t.hits = append(t.hits[:0], t.hits[i:]...)
	}
}

// densityAt counts unique whale wallets within the peaking window ending at now.
func (t *Tracker) densityAt(now int64) int {
	t.expireHits(now)
	seen := make(map[string]struct{}, len(t.hits))
	for _, h := range t.hits {
		seen[h.wallet] = struct{}{}
	}
	return len(seen)
}

func (t *Tracker) countPersistentWallets() int {
	n := 0
	for _, wa := range t.wallets {
		if len(wa.buckets) >= t.cfg.PersistenceMinBuckets {
			n++
		}
	}
	return n
}

func (t *Tracker) countRecentNonEarly(now int64) int {
	n := 0
	for addr, wa := range t.wallets {
		if !t.cohort.IsEarly(addr) && now-wa.lastSeen < t.cfg.ExpansionLookback {
			n++
		}
	}
	return n
}

func (t *Tracker) countRecentWhales(now, lookback int64) int {
	n := 0
	for _, wa := range t.wallets {
		if wa.hasWhale && now-wa.lastWhaleTime < lookback {
			n++
		}
	}
	return n
}
