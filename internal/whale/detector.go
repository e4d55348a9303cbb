package whale

import "wallet-signal-lab/internal/domain"

// Stats holds streaming detector counters.
type Stats struct {
	FlowsProcessed int // valid, first-seen flows
	FlowsSkipped   int // malformed flows
	FlowsDuplicate int // flows already seen by key
	EventsEmitted  int
	EventsDeduped  int // events suppressed by the identity-key set
	WalletStates   int // (wallet, direction) pairs tracked
}

// stateKey partitions state per (wallet, direction).
type stateKey struct {
	wallet    string
	direction domain.Direction
}

// Detector is the streaming single-pass whale detector.
// Flows must arrive ordered by (timestamp, signature); the detector does not
// re-sort. Not safe for concurrent use.
type Detector struct {
	thresholds Thresholds
	states     map[stateKey]*WalletDirectionState
	seenFlows  map[string]struct{}
	emitted    map[domain.WhaleEventKey]struct{}
	events     []domain.WhaleEvent
	stats      Stats
}

// NewDetector creates a detector for the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{
		thresholds: t,
		states:     make(map[stateKey]*WalletDirectionState),
		seenFlows:  make(map[string]struct{}),
		emitted:    make(map[domain.WhaleEventKey]struct{}),
	}
}

// Process consumes one flow and returns the events it triggered, single-tx
// first and then cumulative windows in configuration order.
// Malformed flows and flows already processed return nil without touching
// window state.
func (d *Detector) Process(f *domain.Flow) []domain.WhaleEvent {
	if f == nil || !f.Validate() {
		d.stats.FlowsSkipped++
		return nil
	}

	key := f.Key()
	if _, seen := d.seenFlows[key]; seen {
		d.stats.FlowsDuplicate++
		return nil
	}
	d.seenFlows[key] = struct{}{}
	d.stats.FlowsProcessed++

	var out []domain.WhaleEvent
	if f.Amount >= d.thresholds.SingleTx {
		out = d.emit(out, singleTxEvent(f))
	}
	for _, ev := range d.state(f.Wallet, f.Direction).AddAndCheck(f) {
		out = d.emit(out, ev)
	}
	return out
}

// ProcessAll feeds flows in order and returns every emitted event.
func (d *Detector) ProcessAll(flows []*domain.Flow) []domain.WhaleEvent {
	var out []domain.WhaleEvent
	for _, f := range flows {
		out = append(out, d.Process(f)...)
	}
	return out
}

// Events returns a copy of every event emitted so far, in emission order.
func (d *Detector) Events() []domain.WhaleEvent {
	out := make([]domain.WhaleEvent, len(d.events))
	copy(out, d.events)
	return out
}

// Stats returns the current counters.
func (d *Detector) Stats() Stats {
	s := d.stats
	s.WalletStates = len(d.states)
	return s
}

// Thresholds returns the detector configuration.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

func (d *Detector) state(wallet string, dir domain.Direction) *WalletDirectionState {
	k := stateKey{wallet: wallet, direction: dir}
	s, ok := d.states[k]
	if !ok {
		s = NewWalletDirectionState(wallet, dir, d.thresholds.Windows)
		d.states[k] = s
	}
	return s
}

func (d *Detector) emit(out []domain.WhaleEvent, ev domain.WhaleEvent) []domain.WhaleEvent {
	k := ev.Key()
	if _, dup := d.emitted[k]; dup {
		d.stats.EventsDeduped++
		return out
	}
	d.emitted[k] = struct{}{}
	d.events = append(d.events, ev)
	d.stats.EventsEmitted++
	return append(out, ev)
}
