package replay

import (
	"context"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/ingestion"
	"wallet-signal-lab/internal/storage"
)

// Runner loads flows from storage and replays them in deterministic order.
type Runner struct {
	flowStore storage.FlowStore
}

// NewRunner creates a new replay runner.
func NewRunner(flowStore storage.FlowStore) *Runner {
	return &Runner{flowStore: flowStore}
}

// Run loads flows for a mint within [from, to] and replays them through the engine.
func (r *Runner) Run(ctx context.Context, mint string, from, to int64, engine ReplayEngine) error {
	flows, err := r.flowStore.GetByTimeRange(ctx, mint, from, to)
	if err != nil {
		return fmt.Errorf("load flows: %w", err)
	}
	return replay(ctx, flows, engine)
}

// RunAll loads all flows for a mint and replays them through the engine.
func (r *Runner) RunAll(ctx context.Context, mint string, engine ReplayEngine) error {
	flows, err := r.flowStore.GetByMint(ctx, mint)
	if err != nil {
		return fmt.Errorf("load flows: %w", err)
	}
	return replay(ctx, flows, engine)
}

func replay(ctx context.Context, flows []*domain.Flow, engine ReplayEngine) error {
	ingestion.SortFlows(flows)
	if err := ingestion.ValidateFlowOrdering(flows); err != nil {
		return err
	}

	for _, f := range flows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := engine.OnFlow(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
