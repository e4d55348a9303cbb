package silence

import "wallet-signal-lab/internal/domain"

// Activity drop outcomes. ACTIVITY_DROP and ACTIVE are the only outcomes of
// a completed check; the rest name the precondition that failed.
const (
	DropInsufficientHistory = "INSUFFICIENT_HISTORY"
	DropNoHistory           = "NO_HISTORY"
	DropTooRecent           = "TOO_RECENT"
	DropRecentTooShort      = "RECENT_TOO_SHORT"
	DropLowBaseline         = "LOW_BASELINE"
	DropActive              = domain.StatusActive
	DropDetected            = domain.PatternActivityDrop
)

// DropResult is the outcome of an activity drop check.
type DropResult struct {
	Silent  bool
	Reason  string
	DropPct float64 // relative drop of the recent rate against the lifetime rate
}

// Summary is the read-only silence aggregate over wallets with activity.
type Summary struct {
	Silent   int
	Eligible int
	Pct      float64 // Silent / Eligible, 0 when no wallet is eligible
}

// Detector tracks wallet activity and silence latches for one token.
// Not safe for concurrent use; run one detector per monitored token.
type Detector struct {
	cfg     Config
	mint    string
	birth   int64
	wallets map[string]*WalletActivityState
	order   []string // first-seen order, keeps trigger output deterministic
	pending []domain.SilenceEvent
}

// NewDetector creates a detector for the given token.
func NewDetector(mint string, cfg Config) *Detector {
	return &Detector{
		cfg:     cfg,
		mint:    mint,
		wallets: make(map[string]*WalletActivityState),
	}
}

// OnWalletTrade records a trade by wallet. A BUY clears the silence latch;
// a SELL never does.
func (d *Detector) OnWalletTrade(wallet string, ts int64, dir domain.Direction) *WalletActivityState {
	if d.birth == 0 {
		d.birth = ts
	}

	ws, ok := d.wallets[wallet]
	if !ok {
		delta := ts - d.birth
		ws = &WalletActivityState{
			Address: wallet,
			IsEarly: delta >= 0 && delta <= d.cfg.EarlyWindow,
		}
		d.wallets[wallet] = ws
		d.order = append(d.order, wallet)
	}

	ws.recordTrade(ts, dir, d.cfg.HistoryWindow)
	if dir == domain.DirectionBuy {
		ws.clear()
	}
	return ws
}

// OnTokenActivity runs the cohort comparison for every wallet with activity:
// a wallet idle for at least the cohort window turns silent, keeping an
// already latched pattern and silent_since. A recently active wallet that is
// silent and whose last trade was a SELL stays silent; any other recently
// active wallet is ACTIVE.
func (d *Detector) OnTokenActivity(ts int64) map[string]domain.SilenceStatus {
	out := make(map[string]domain.SilenceStatus, len(d.wallets))

	for _, addr := range d.order {
		ws := d.wallets[addr]
		if ws.LifetimeTrades == 0 {
			continue
		}

		if ts-ws.LastSeen >= d.cfg.CohortWindow {
			if ws.latch(domain.PatternCohortComparison, ts) {
				d.record(ws, domain.TriggerTokenActivity, ts)
			}
			out[addr] = ws.Status()
			continue
		}

		if ws.IsSilent && ws.LastDirection == domain.DirectionSell {
			out[addr] = ws.Status()
			continue
		}
		ws.clear()
		out[addr] = ws.Status()
	}

	return out
}

// OnStateTransition runs the lifecycle position check. Only a transition
// into TOKEN_PRESSURE_PEAKING has an effect: wallets last seen before the
// transition instant turn STOPPED_BEFORE_PEAK, the rest are ACTIVE_AT_PEAK.
// Returns an empty map for any other state.
func (d *Detector) OnStateTransition(state domain.TokenState, ts int64) map[string]domain.SilenceStatus {
	out := make(map[string]domain.SilenceStatus)
	if state != domain.TokenPressurePeaking {
		return out
	}

	for _, addr := range d.order {
		ws := d.wallets[addr]
		if ws.LifetimeTrades == 0 {
			continue
		}
		if ws.LastSeen < ts {
			if ws.latch(domain.PatternStoppedBeforePeak, ts) {
				d.record(ws, domain.TriggerStateTransition, ts)
			}
			out[addr] = ws.Status()
			continue
		}
		out[addr] = domain.SilenceStatus{Wallet: addr, Pattern: domain.StatusActiveAtPeak}
	}

	return out
}

// CheckActivityDrop compares the wallet's lifetime trade rate with its rate
// over the recent window. Informational: the latch is not touched.
func (d *Detector) CheckActivityDrop(wallet string, ts int64) DropResult {
	ws, ok := d.wallets[wallet]
	if !ok {
		return DropResult{Reason: DropNoHistory}
	}
	if ws.LifetimeTrades < d.cfg.MinTradesForRate {
		return DropResult{Reason: DropInsufficientHistory}
	}
	if ws.FirstSeen == 0 {
		return DropResult{Reason: DropNoHistory}
	}

	lifetimeMin := float64(ts-ws.FirstSeen) / 60
	if lifetimeMin < d.cfg.MinLifetimeMinutes {
		return DropResult{Reason: DropTooRecent}
	}
	historical := float64(ws.LifetimeTrades) / lifetimeMin

	cutoff := ts - d.cfg.RecentWindow
	var recent []int64
	for _, t := range ws.history {
		if t >= cutoff {
			recent = append(recent, t)
		}
	}

	var recentRate float64
	if len(recent) >= 2 {
		spanMin := float64(recent[len(recent)-1]-recent[0]) / 60
		if spanMin < d.cfg.MinRecentSpanMinutes {
			return DropResult{Reason: DropRecentTooShort}
		}
		recentRate = float64(len(recent)) / spanMin
	}

	if historical < d.cfg.MinBaselineRate {
		return DropResult{Reason: DropLowBaseline}
	}

	drop := (historical - recentRate) / historical
	if drop >= d.cfg.DropThreshold {
		return DropResult{Silent: true, Reason: DropDetected, DropPct: drop}
	}
	return DropResult{Reason: DropActive, DropPct: drop}
}

// ApplyActivityDrop runs CheckActivityDrop and latches the wallet silent with
// ACTIVITY_DROP when the check reports a drop.
func (d *Detector) ApplyActivityDrop(wallet string, ts int64) DropResult {
	res := d.CheckActivityDrop(wallet, ts)
	if !res.Silent {
		return res
	}
	ws := d.wallets[wallet]
	if ws.latch(domain.PatternActivityDrop, ts) {
		d.record(ws, domain.TriggerWalletTrade, ts)
	}
	return res
}

// Summary counts silent wallets among wallets with at least one trade.
func (d *Detector) Summary() Summary {
	var s Summary
	for _, ws := range d.wallets {
		if ws.LifetimeTrades < 1 {
			continue
		}
		s.Eligible++
		if ws.IsSilent {
			s.Silent++
		}
	}
	if s.Eligible > 0 {
		s.Pct = float64(s.Silent) / float64(s.Eligible)
	}
	return s
}

// IsSilent reports the current silence latch of a wallet.
func (d *Detector) IsSilent(addr string) bool {
	ws, ok := d.wallets[addr]
	return ok && ws.IsSilent
}

// Statuses returns the current latch of every tracked wallet.
func (d *Detector) Statuses() map[string]domain.SilenceStatus {
	out := make(map[string]domain.SilenceStatus, len(d.wallets))
	for addr, ws := range d.wallets {
		out[addr] = ws.Status()
	}
	return out
}

// Wallet returns the state of one wallet.
func (d *Detector) Wallet(addr string) (*WalletActivityState, bool) {
	ws, ok := d.wallets[addr]
	return ws, ok
}

// IsEarly reports whether the wallet first traded within the early window.
func (d *Detector) IsEarly(addr string) bool {
	ws, ok := d.wallets[addr]
	return ok && ws.IsEarly
}

// DrainEvents returns the silence detections recorded since the last call.
func (d *Detector) DrainEvents() []domain.SilenceEvent {
	out := d.pending
	d.pending = nil
	return out
}

func (d *Detector) record(ws *WalletActivityState, trigger string, ts int64) {
	d.pending = append(d.pending, domain.SilenceEvent{
		Mint:      d.mint,
		Wallet:    ws.Address,
		Pattern:   ws.Pattern,
		EventTime: ts,
		Trigger:   trigger,
	})
}
