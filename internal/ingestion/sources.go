package ingestion

import (
	"context"

	"wallet-signal-lab/internal/domain"
)

// FlowSource provides historical flows for a mint.
type FlowSource interface {
	// Fetch retrieves flows for a mint with block time in [from, to).
	// Results need not be ordered.
	Fetch(ctx context.Context, mint string, from, to int64) ([]*domain.Flow, error)
}

// LiveFlowSource streams flows for a mint as they land on chain.
type LiveFlowSource interface {
	// Subscribe returns a channel of flows. The channel is closed when ctx is
	// cancelled or the subscription ends.
	Subscribe(ctx context.Context, mint string) (<-chan *domain.Flow, error)
}

// StaticFlowSource serves a fixed flow table, e.g. one read from a JSONL export.
type StaticFlowSource struct {
	flows []*domain.Flow
}

// NewStaticFlowSource creates a source over the given flows.
func NewStaticFlowSource(flows []*domain.Flow) *StaticFlowSource {
	return &StaticFlowSource{flows: flows}
}

// Fetch returns copies of flows matching mint and [from, to).
// An empty mint matches flows without a mint.
func (s *StaticFlowSource) Fetch(_ context.Context, mint string, from, to int64) ([]*domain.Flow, error) {
	var result []*domain.Flow
	for _, f := range s.flows {
		if f.Mint != mint || f.Timestamp < from || f.Timestamp >= to {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}
	return result, nil
}

var (
	_ FlowSource     = (*StaticFlowSource)(nil)
	_ FlowSource     = (*RPCFlowSource)(nil)
	_ LiveFlowSource = (*WSFlowSource)(nil)
)
