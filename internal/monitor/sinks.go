package monitor

import (
	"context"
	"errors"
	"fmt"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

// EventSink receives processor results.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, r *Result) error
}

// StoreSink persists flows and detections. Nil stores are skipped, so the
// same sink type serves the Postgres set and a ClickHouse whale-event copy.
// Duplicate keys are ignored to keep replays idempotent.
type StoreSink struct {
	name        string
	flows       storage.FlowStore
	whales      storage.WhaleEventStore
	silences    storage.SilenceEventStore
	transitions storage.TransitionStore
	signals     storage.WalletSignalStore
}

// StoreSinkOptions configures a StoreSink.
type StoreSinkOptions struct {
	Name        string
	Flows       storage.FlowStore
	Whales      storage.WhaleEventStore
	Silences    storage.SilenceEventStore
	Transitions storage.TransitionStore
	Signals     storage.WalletSignalStore
}

// NewStoreSink creates a storage sink.
func NewStoreSink(opts StoreSinkOptions) *StoreSink {
	name := opts.Name
	if name == "" {
		name = "store"
	}
	return &StoreSink{
		name:        name,
		flows:       opts.Flows,
		whales:      opts.Whales,
		silences:    opts.Silences,
		transitions: opts.Transitions,
		signals:     opts.Signals,
	}
}

func (s *StoreSink) Name() string { return s.name }

func (s *StoreSink) Handle(ctx context.Context, r *Result) error {
	if s.flows != nil && r.Flow != nil {
		if _, err := s.flows.InsertNew(ctx, []*domain.Flow{r.Flow}); err != nil {
			return fmt.Errorf("store flow: %w", err)
		}
	}
	if s.whales != nil {
		for i := range r.WhaleEvents {
			if err := ignoreDuplicate(s.whales.Insert(ctx, &r.WhaleEvents[i])); err != nil {
				return fmt.Errorf("store whale event: %w", err)
			}
		}
	}
	if s.silences != nil {
		for i := range r.SilenceEvents {
			if err := ignoreDuplicate(s.silences.Insert(ctx, &r.SilenceEvents[i])); err != nil {
				return fmt.Errorf("store silence event: %w", err)
			}
		}
	}
	if s.signals != nil {
		for i := range r.Signals {
			if err := ignoreDuplicate(s.signals.Insert(ctx, &r.Signals[i])); err != nil {
				return fmt.Errorf("store wallet signal: %w", err)
			}
		}
	}
	if s.transitions != nil && r.Transition != nil {
		if err := ignoreDuplicate(s.transitions.Insert(ctx, r.Transition)); err != nil {
			return fmt.Errorf("store transition: %w", err)
		}
	}
	return nil
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// EventPublisher is the subset of *publish.Publisher the sink needs.
type EventPublisher interface {
	PublishWhaleEvents(ctx context.Context, events []domain.WhaleEvent) error
	PublishSilenceEvents(ctx context.Context, events []domain.SilenceEvent) error
	PublishWalletSignals(ctx context.Context, signals []domain.WalletSignal) error
	PublishTransition(ctx context.Context, t domain.StateTransition) error
}

// PublishSink forwards detections to a message bus.
type PublishSink struct {
	pub EventPublisher
}

// NewPublishSink creates a publishing sink.
func NewPublishSink(pub EventPublisher) *PublishSink {
	return &PublishSink{pub: pub}
}

func (s *PublishSink) Name() string { return "kafka" }

func (s *PublishSink) Handle(ctx context.Context, r *Result) error {
	if len(r.WhaleEvents) > 0 {
		if err := s.pub.PublishWhaleEvents(ctx, r.WhaleEvents); err != nil {
			return err
		}
	}
	if len(r.SilenceEvents) > 0 {
		if err := s.pub.PublishSilenceEvents(ctx, r.SilenceEvents); err != nil {
			return err
		}
	}
	if len(r.Signals) > 0 {
		if err := s.pub.PublishWalletSignals(ctx, r.Signals); err != nil {
			return err
		}
	}
	if r.Transition != nil {
		return s.pub.PublishTransition(ctx, *r.Transition)
	}
	return nil
}

// StatusWriter is the subset of the Redis status cache the sink needs.
type StatusWriter interface {
	SetStatuses(ctx context.Context, mint string, statuses map[string]domain.SilenceStatus) error
	SetTokenState(ctx context.Context, mint string, state domain.TokenState) error
}

// StatusCacheSink keeps the latest wallet statuses and token state in a cache.
type StatusCacheSink struct {
	cache StatusWriter
}

// NewStatusCacheSink creates a status cache sink.
func NewStatusCacheSink(cache StatusWriter) *StatusCacheSink {
	return &StatusCacheSink{cache: cache}
}

func (s *StatusCacheSink) Name() string { return "redis" }

func (s *StatusCacheSink) Handle(ctx context.Context, r *Result) error {
	if len(r.Statuses) > 0 {
		if err := s.cache.SetStatuses(ctx, r.Mint, r.Statuses); err != nil {
			return err
		}
	}
	if r.Transition != nil || r.Flow != nil {
		return s.cache.SetTokenState(ctx, r.Mint, r.State)
	}
	return nil
}

var (
	_ EventSink = (*StoreSink)(nil)
	_ EventSink = (*PublishSink)(nil)
	_ EventSink = (*StatusCacheSink)(nil)
)
