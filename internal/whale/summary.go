package whale

import (
	"sort"

	"wallet-signal-lab/internal/domain"
)

// Summarize aggregates events into per (wallet, window) whale states.
// Single-tx events feed the counts and maxima; cumulative events feed the
// buy/sell totals of their own window. Output is sorted by wallet, window.
func Summarize(events []domain.WhaleEvent) []domain.WhaleState {
	type key struct {
		wallet string
		window domain.Window
	}
	byKey := make(map[key]*domain.WhaleState)

	for i := range events {
		ev := &events[i]
		k := key{wallet: ev.Wallet, window: ev.Window}
		st, ok := byKey[k]
		if !ok {
			st = &domain.WhaleState{
				Wallet:         ev.Wallet,
				Window:         ev.Window,
				FirstWhaleTime: ev.EventTime,
				LastWhaleTime:  ev.EventTime,
			}
			byKey[k] = st
		}

		if ev.EventTime < st.FirstWhaleTime {
			st.FirstWhaleTime = ev.EventTime
		}
		if ev.EventTime > st.LastWhaleTime {
			st.LastWhaleTime = ev.EventTime
		}

		dir := ev.Direction()
		if ev.IsSingleTx() {
			switch dir {
			case domain.DirectionBuy:
				st.TxBuyCount++
				st.TxBuyMax = max(st.TxBuyMax, ev.Amount)
			case domain.DirectionSell:
				st.TxSellCount++
				st.TxSellMax = max(st.TxSellMax, ev.Amount)
			}
			continue
		}
		switch dir {
		case domain.DirectionBuy:
			st.CumBuyTotal += ev.Amount
		case domain.DirectionSell:
			st.CumSellTotal += ev.Amount
		}
	}

	out := make([]domain.WhaleState, 0, len(byKey))
	for _, st := range byKey {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wallet != out[j].Wallet {
			return out[i].Wallet < out[j].Wallet
		}
		return out[i].Window < out[j].Window
	})
	return out
}
