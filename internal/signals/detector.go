// Package signals derives behavioural wallet signals from whale events:
// entry timing, coordination, persistence, and token-level exhaustion of
// the current wave's early wallets.
package signals

import (
	"sort"

	"wallet-signal-lab/internal/domain"
)

// Config holds signal parameters. Times are in seconds.
type Config struct {
	EarlyWindow            int64
	CoordinationWindow     int64
	CoordinationMinWallets int
	CoordinationSample     int
	PersistenceMinBuckets  int
	PersistenceMaxGap      int64
	ExhaustionEarlyPct     float64
	ExhaustionStep         float64
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		EarlyWindow:            300,
		CoordinationWindow:     60,
		CoordinationMinWallets: 3,
		CoordinationSample:     5,
		PersistenceMinBuckets:  2,
		PersistenceMaxGap:      300,
		ExhaustionEarlyPct:     0.60,
		ExhaustionStep:         0.10,
	}
}

// SilenceLookup reports the silence latch of a wallet.
type SilenceLookup interface {
	IsSilent(wallet string) bool
}

type walletInfo struct {
	firstSeen     int64
	buckets       map[int64]struct{}
	timingChecked bool
	timedAt       int64
	early         bool
}

type whaleHit struct {
	time      int64
	wallet    string
	direction domain.Direction
}

// Detector emits wallet signals for one token.
// Not safe for concurrent use.
type Detector struct {
	cfg     Config
	mint    string
	silence SilenceLookup

	hasBirth  bool
	waveStart int64
	episodeID int

	wallets   map[string]*walletInfo
	early     map[string]struct{} // every wallet ever timed early
	waveEarly map[string]struct{} // early wallets of the current wave
	recent    []whaleHit

	lastExhaustionPct float64
}

// NewDetector creates a detector. silence answers the exhaustion checks.
func NewDetector(mint string, cfg Config, silence SilenceLookup) *Detector {
	return &Detector{
		cfg:       cfg,
		mint:      mint,
		silence:   silence,
		wallets:   make(map[string]*walletInfo),
		early:     make(map[string]struct{}),
		waveEarly: make(map[string]struct{}),
	}
}

// ObserveFlow records the token birth, the wallet's first appearance and its
// minute bucket.
func (d *Detector) ObserveFlow(f *domain.Flow) {
	if !d.hasBirth {
		d.waveStart = f.Timestamp
		d.hasBirth = true
	}
	wi, ok := d.wallets[f.Wallet]
	if !ok {
		wi = &walletInfo{firstSeen: f.Timestamp, buckets: make(map[int64]struct{})}
		d.wallets[f.Wallet] = wi
	}
	wi.buckets[f.Timestamp/60] = struct{}{}
}

// OnWhaleEvents runs the wallet checks for the whale events one flow
// produced. It returns false when no signal fired. The flow must have been
// observed first.
func (d *Detector) OnWhaleEvents(f *domain.Flow, events []domain.WhaleEvent) (domain.WalletSignal, bool) {
	if len(events) == 0 {
		return domain.WalletSignal{}, false
	}
	sig := domain.WalletSignal{
		Mint:      d.mint,
		Wallet:    f.Wallet,
		EventTime: f.Timestamp,
		FlowRef:   f.Signature,
		EpisodeID: d.episodeID,
	}
	wi := d.wallets[f.Wallet]
	if wi == nil {
		d.ObserveFlow(f)
		wi = d.wallets[f.Wallet]
	}

	if !wi.timingChecked {
		wi.timingChecked = true
		wi.timedAt = f.Timestamp
		delta := wi.firstSeen - d.waveStart
		wi.early = delta >= 0 && delta <= d.cfg.EarlyWindow
		if wi.early {
			d.early[f.Wallet] = struct{}{}
			d.waveEarly[f.Wallet] = struct{}{}
		}
		sig.Signals = append(sig.Signals, domain.SignalTiming)
		sig.Details.Timing = &domain.TimingSignal{IsEarly: wi.early, DeltaSeconds: delta}
	}

	for range events {
		d.recent = append(d.recent, whaleHit{time: f.Timestamp, wallet: f.Wallet, direction: f.Direction})
	}
	if c, ok := d.coordination(f.Timestamp, f.Wallet); ok {
		sig.Signals = append(sig.Signals, domain.SignalCoordination)
		sig.Details.Coordination = c
	}

	if p, ok := d.persistence(wi); ok {
		sig.Signals = append(sig.Signals, domain.SignalPersistence)
		sig.Details.Persistence = p
	}

	return sig, len(sig.Signals) > 0
}

func (d *Detector) coordination(now int64, wallet string) (*domain.CoordinationSignal, bool) {
	cutoff := now - d.cfg.CoordinationWindow
	i := 0
	for i < len(d.recent) && d.recent[i].time < cutoff {
		i++
	}
	if i > 0 {
		d.recent = append(d.recent[:0], d.recent[i:]...)
	}

	unique := make(map[string]struct{})
	var buys, sells int
	for _, h := range d.recent {
		unique[h.wallet] = struct{}{}
		if h.direction == domain.DirectionBuy {
			buys++
		} else {
			sells++
		}
	}
	if len(unique) < d.cfg.CoordinationMinWallets {
		return nil, false
	}

	dir := domain.CoordinationMixed
	switch {
	case sells == 0:
		dir = domain.CoordinationBuy
	case buys == 0:
		dir = domain.CoordinationSell
	}

	others := make([]string, 0, len(unique))
	for w := range unique {
		if w != wallet {
			others = append(others, w)
		}
	}
	sort.Strings(others)
	if len(others) > d.cfg.CoordinationSample {
		others = others[:d.cfg.CoordinationSample]
	}
	return &domain.CoordinationSignal{
		WalletCount:   len(unique),
		Direction:     dir,
		WindowSeconds: d.cfg.CoordinationWindow,
		SampleWallets: others,
	}, true
}

// persistence requires enough distinct minute buckets and no gap between
// consecutive buckets above the max gap.
func (d *Detector) persistence(wi *walletInfo) (*domain.PersistenceSignal, bool) {
	if len(wi.buckets) < d.cfg.PersistenceMinBuckets {
		return nil, false
	}
	buckets := make([]int64, 0, len(wi.buckets))
	for b := range wi.buckets {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	var maxGap int64
	for i := 1; i < len(buckets); i++ {
		if gap := (buckets[i] - buckets[i-1]) * 60; gap > maxGap {
			maxGap = gap
		}
	}
	if maxGap > d.cfg.PersistenceMaxGap {
		return nil, false
	}
	return &domain.PersistenceSignal{Appearances: len(buckets), MaxGapSeconds: maxGap}, true
}

// WaveExhaustion returns the silent share of the current wave's early
// wallets and whether it reached the exhaustion threshold. No dedup.
func (d *Detector) WaveExhaustion() (domain.ExhaustionSignal, bool) {
	total := len(d.waveEarly)
	if total == 0 {
		return domain.ExhaustionSignal{}, false
	}
	silent := 0
	for w := range d.waveEarly {
		if d.silence.IsSilent(w) {
			silent++
		}
	}
	pct := float64(silent) / float64(total)
	ex := domain.ExhaustionSignal{DisengagementPct: pct, SilentEarly: silent, TotalEarly: total}
	return ex, pct >= d.cfg.ExhaustionEarlyPct
}

// CheckExhaustion emits the token-level EXHAUSTION signal the first time the
// wave crosses the threshold and again at every further step.
func (d *Detector) CheckExhaustion(f *domain.Flow) (domain.WalletSignal, bool) {
	ex, ok := d.WaveExhaustion()
	if !ok {
		return domain.WalletSignal{}, false
	}
	if d.lastExhaustionPct > 0 && ex.DisengagementPct < d.lastExhaustionPct+d.cfg.ExhaustionStep {
		return domain.WalletSignal{}, false
	}
	d.lastExhaustionPct = ex.DisengagementPct
	return domain.WalletSignal{
		Mint:      d.mint,
		EventTime: f.Timestamp,
		FlowRef:   f.Signature,
		EpisodeID: d.episodeID,
		Signals:   []string{domain.SignalExhaustion},
		Details:   domain.SignalDetails{Exhaustion: &ex},
	}, true
}

// StartEpisode opens a new wave at ts: the wave's early cohort and the
// exhaustion dedup start over. Wallets keep their timing verdict, and early
// wallets timed on the igniting flow stay in the new wave.
func (d *Detector) StartEpisode(episodeID int, ts int64) {
	wave := make(map[string]struct{})
	for w := range d.waveEarly {
		if d.wallets[w].timedAt >= ts {
			wave[w] = struct{}{}
		}
	}
	d.episodeID = episodeID
	d.waveStart = ts
	d.waveEarly = wave
	d.lastExhaustionPct = 0
}

// WaveEarlyCount returns the number of early wallets in the current wave.
func (d *Detector) WaveEarlyCount() int {
	return len(d.waveEarly)
}

// IsEarly reports whether the wallet was ever timed early.
func (d *Detector) IsEarly(wallet string) bool {
	_, ok := d.early[wallet]
	return ok
}

// EarlyCount returns the number of wallets ever timed early.
func (d *Detector) EarlyCount() int {
	return len(d.early)
}
