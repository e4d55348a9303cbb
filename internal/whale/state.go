package whale

import "wallet-signal-lab/internal/domain"

// windowLatch pairs a cumulative window with its last-emission anchor.
type windowLatch struct {
	spec      WindowSpec
	window    *SlidingWindow
	anchor    int64
	hasAnchor bool
}

// WalletDirectionState holds the cumulative windows of one (wallet, direction)
// pair and applies the latch/reset emission rule per window.
type WalletDirectionState struct {
	wallet    string
	direction domain.Direction
	latches   []windowLatch
}

// NewWalletDirectionState creates state with one window per spec.
func NewWalletDirectionState(wallet string, direction domain.Direction, specs []WindowSpec) *WalletDirectionState {
	latches := make([]windowLatch, len(specs))
	for i, spec := range specs {
		latches[i] = windowLatch{spec: spec, window: NewSlidingWindow(spec.Duration)}
	}
	return &WalletDirectionState{
		wallet:    wallet,
		direction: direction,
		latches:   latches,
	}
}

// AddAndCheck adds the flow to every window and returns the cumulative
// events it triggers, at most one per window.
//
// Per window: expire, add, then emit once for this exact flow timestamp if
// the sum is at or above threshold. Falling below threshold clears the
// anchor so the next crossing re-emits.
func (s *WalletDirectionState) AddAndCheck(f *domain.Flow) []domain.WhaleEvent {
	var events []domain.WhaleEvent

	for i := range s.latches {
		l := &s.latches[i]
		l.window.Expire(f.Timestamp)
		l.window.Add(f.Timestamp, f.Amount, f.Signature)

		if !l.window.Crosses(l.spec.Threshold) {
			l.hasAnchor = false
			continue
		}
		if l.hasAnchor && l.anchor == f.Timestamp {
			continue
		}

		c, ok := l.window.CrossingPoint(l.spec.Threshold)
		if !ok {
			continue
		}
		events = append(events, domain.WhaleEvent{
			Wallet:          s.wallet,
			Mint:            f.Mint,
			Window:          l.spec.Window,
			EventType:       domain.EventType(l.spec.EventPrefix, s.direction),
			EventTime:       f.Timestamp,
			FlowRef:         c.Ref,
			Amount:          c.Sum,
			SupportingFlows: c.Count,
		})
		l.anchor = f.Timestamp
		l.hasAnchor = true
	}

	return events
}

// WindowSum returns the current sum of the window tagged w, or 0.
func (s *WalletDirectionState) WindowSum(w domain.Window) int64 {
	for i := range s.latches {
		if s.latches[i].spec.Window == w {
			return s.latches[i].window.Sum()
		}
	}
	return 0
}

// singleTxEvent builds the lifetime event for a flow at or above the
// single-tx threshold.
func singleTxEvent(f *domain.Flow) domain.WhaleEvent {
	return domain.WhaleEvent{
		Wallet:          f.Wallet,
		Mint:            f.Mint,
		Window:          domain.WindowLifetime,
		EventType:       domain.EventType(domain.EventPrefixTx, f.Direction),
		EventTime:       f.Timestamp,
		FlowRef:         f.Signature,
		Amount:          f.Amount,
		SupportingFlows: 1,
	}
}
