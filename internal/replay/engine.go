package replay

import (
	"context"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/monitor"
	"wallet-signal-lab/internal/whale"
)

// ReplayEngine processes flows in deterministic order.
type ReplayEngine interface {
	// OnFlow is called for each flow in order.
	// Flows are guaranteed to be ordered by (timestamp, signature, wallet, direction).
	OnFlow(ctx context.Context, f *domain.Flow) error
}

// WhaleEngine replays flows through the streaming whale detector only.
type WhaleEngine struct {
	Detector *whale.Detector
}

// NewWhaleEngine creates a whale-only engine.
func NewWhaleEngine(t whale.Thresholds) *WhaleEngine {
	return &WhaleEngine{Detector: whale.NewDetector(t)}
}

func (e *WhaleEngine) OnFlow(_ context.Context, f *domain.Flow) error {
	e.Detector.Process(f)
	return nil
}

// ProcessorEngine replays flows through the full per-token pipeline.
type ProcessorEngine struct {
	Processor *monitor.Processor
}

// NewProcessorEngine wraps a processor.
func NewProcessorEngine(p *monitor.Processor) *ProcessorEngine {
	return &ProcessorEngine{Processor: p}
}

func (e *ProcessorEngine) OnFlow(ctx context.Context, f *domain.Flow) error {
	e.Processor.Process(ctx, f)
	return nil
}
