package silence

import "wallet-signal-lab/internal/domain"

// WalletActivityState is the per-wallet record kept by a Detector.
type WalletActivityState struct {
	Address        string
	FirstSeen      int64
	LastSeen       int64
	IsEarly        bool
	LifetimeTrades int
	LastDirection  domain.Direction

	// Silence latch.
	IsSilent    bool
	Pattern     string
	SilentSince int64

	history []int64 // trade times within the history window, oldest first
}

// History returns a copy of the retained trade times.
func (w *WalletActivityState) History() []int64 {
	out := make([]int64, len(w.history))
	copy(out, w.history)
	return out
}

// Status returns the current latch as a status value.
func (w *WalletActivityState) Status() domain.SilenceStatus {
	if w.IsSilent {
		return domain.SilenceStatus{Wallet: w.Address, IsSilent: true, Pattern: w.Pattern, SilentSince: w.SilentSince}
	}
	return domain.SilenceStatus{Wallet: w.Address, Pattern: domain.StatusActive}
}

// recordTrade appends a trade and trims history older than window.
func (w *WalletActivityState) recordTrade(ts int64, dir domain.Direction, window int64) {
	if w.FirstSeen == 0 {
		w.FirstSeen = ts
	}
	w.LastSeen = ts
	w.LastDirection = dir
	w.LifetimeTrades++
	w.history = append(w.history, ts)

	cutoff := ts - window
	i := 0
	for i < len(w.history) && w.history[i] < cutoff {
		i++
	}
	if i > 0 {
		w.history = append(w.history[:0], w.history[i:]...)
	}
}

// latch marks the wallet silent unless it already is. Reports whether this
// call was the first detection.
func (w *WalletActivityState) latch(pattern string, ts int64) bool {
	if w.IsSilent {
		return false
	}
	w.IsSilent = true
	w.Pattern = pattern
	w.SilentSince = ts
	return true
}

func (w *WalletActivityState) clear() {
	w.IsSilent = false
	w.Pattern = ""
	w.SilentSince = 0
}
