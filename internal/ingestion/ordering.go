package ingestion

import (
	"errors"
	"sort"

	"wallet-signal-lab/internal/domain"
)

// ErrInvalidOrdering is returned when flows are not in canonical order.
var ErrInvalidOrdering = errors.New("flows are not in deterministic order")

// SortFlows orders flows by (timestamp ASC, signature ASC, wallet ASC, direction ASC).
func SortFlows(flows []*domain.Flow) {
	sort.SliceStable(flows, func(i, j int) bool {
		return domain.FlowLess(flows[i], flows[j])
	})
}

// ValidateFlowOrdering checks that flows are strictly increasing in canonical
// order. Equal neighbours are duplicates and also fail.
func ValidateFlowOrdering(flows []*domain.Flow) error {
	for i := 1; i < len(flows); i++ {
		if !domain.FlowLess(flows[i-1], flows[i]) {
			return ErrInvalidOrdering
		}
	}
	return nil
}
