package whale

import (
	"sort"

	"wallet-signal-lab/internal/domain"
)

// BuildEvents recomputes the full whale event set from a complete flow table.
//
// Flows are partitioned by (wallet, direction) and each partition is replayed
// in its (timestamp, signature) order through the same windowed rule the
// streaming Detector applies, so the result equals the streaming output over
// the same input as a set. Input must already be ordered; malformed and
// duplicate flows are dropped as in the streaming form.
func BuildEvents(flows []*domain.Flow, t Thresholds) []domain.WhaleEvent {
	partitions := make(map[stateKey][]*domain.Flow)
	var order []stateKey
	seen := make(map[string]struct{}, len(flows))

	for _, f := range flows {
		if f == nil || !f.Validate() {
			continue
		}
		fk := f.Key()
		if _, dup := seen[fk]; dup {
			continue
		}
		seen[fk] = struct{}{}

		k := stateKey{wallet: f.Wallet, direction: f.Direction}
		if _, ok := partitions[k]; !ok {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], f)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].wallet != order[j].wallet {
			return order[i].wallet < order[j].wallet
		}
		return order[i].direction < order[j].direction
	})

	emitted := make(map[domain.WhaleEventKey]struct{})
	var events []domain.WhaleEvent
	add := func(ev domain.WhaleEvent) {
		k := ev.Key()
		if _, dup := emitted[k]; dup {
			return
		}
		emitted[k] = struct{}{}
		events = append(events, ev)
	}

	for _, k := range order {
		state := NewWalletDirectionState(k.wallet, k.direction, t.Windows)
		for _, f := range partitions[k] {
			if f.Amount >= t.SingleTx {
				add(singleTxEvent(f))
			}
			for _, ev := range state.AddAndCheck(f) {
				add(ev)
			}
		}
	}

	SortEvents(events)
	return events
}

// SortEvents orders events by (event_time, wallet, window, event_type, flow_ref).
func SortEvents(events []domain.WhaleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return domain.WhaleEventLess(&events[i], &events[j])
	})
}
