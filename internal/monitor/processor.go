// Package monitor runs the full per-token pipeline over a live flow stream:
// whale detection, silence tracking and the token lifecycle.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/lifecycle"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/observability"
	"wallet-signal-lab/internal/signals"
	"wallet-signal-lab/internal/silence"
	"wallet-signal-lab/internal/whale"
)

// Skip reasons.
const (
	SkipInvalid     = "invalid"
	SkipDuplicate   = "duplicate"
	SkipForeignMint = "foreign_mint"
	SkipOutOfOrder  = "out_of_order"
)

// Result is everything one flow produced.
type Result struct {
	Mint          string
	Flow          *domain.Flow
	WhaleEvents   []domain.WhaleEvent
	SilenceEvents []domain.SilenceEvent
	Signals       []domain.WalletSignal
	Transition    *domain.StateTransition
	Statuses      map[string]domain.SilenceStatus
	State         domain.TokenState
}

// Options configures a Processor.
type Options struct {
	Mint              string
	Thresholds        whale.Thresholds
	Silence           silence.Config
	Signals           signals.Config
	Lifecycle         lifecycle.Config
	ApplyActivityDrop bool
	Sinks             []EventSink
	Metrics           *observability.Metrics // optional
	Logger            *logger.Logger
}

// Status is a point-in-time view of a processor.
type Status struct {
	SessionID     string            `json:"session_id"`
	Mint          string            `json:"mint"`
	State         domain.TokenState `json:"state"`
	EpisodeID     int               `json:"episode_id"`
	Flows         int               `json:"flows"`
	Skipped       int               `json:"skipped"`
	WhaleEvents   int               `json:"whale_events"`
	SilenceEvents int               `json:"silence_events"`
	WalletSignals int               `json:"wallet_signals"`
	Transitions   int               `json:"transitions"`
	SilentWallets int               `json:"silent_wallets"`
	Wallets       int               `json:"wallets"`
	EarlyWallets  int               `json:"early_wallets"`
	WaveEarly     int               `json:"wave_early_wallets"`
	LastFlowTime  int64             `json:"last_flow_time"`
	SinkErrors    int               `json:"sink_errors"`
}

// Processor is the live pipeline for one monitored token.
// Safe for concurrent use: Process calls are serialised end to end, sinks
// included, so sinks see results in processing order. Flows must arrive in
// chain time order; a flow older than the last processed one is skipped.
type Processor struct {
	mint      string
	sessionID string
	applyDrop bool

	feed sync.Mutex // held for a whole Process call

	mu      sync.Mutex // guards the detectors and counters
	whales  *whale.Detector
	silence *silence.Detector
	signals *signals.Detector
	tracker *lifecycle.Tracker
	seen    map[string]struct{}
	status  Status
	history []domain.StateTransition
	emitted []domain.WalletSignal

	sinks   []EventSink
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewProcessor creates a processor in TOKEN_QUIET with a fresh session id.
func NewProcessor(opts Options) *Processor {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	sessionID := uuid.NewString()
	det := silence.NewDetector(opts.Mint, opts.Silence)
	sigCfg := opts.Signals
	if sigCfg == (signals.Config{}) {
		sigCfg = signals.DefaultConfig()
	}
	sig := signals.NewDetector(opts.Mint, sigCfg, det)

	p := &Processor{
		mint:      opts.Mint,
		sessionID: sessionID,
		applyDrop: opts.ApplyActivityDrop,
		whales:    whale.NewDetector(opts.Thresholds),
		silence:   det,
		signals:   sig,
		tracker:   lifecycle.NewTracker(opts.Mint, opts.Lifecycle, sig),
		seen:      make(map[string]struct{}),
		sinks:     opts.Sinks,
		metrics:   opts.Metrics,
		log:       log.Named("monitor").With("mint", opts.Mint, "session_id", sessionID),
	}
	p.status = Status{
		SessionID: sessionID,
		Mint:      opts.Mint,
		State:     domain.TokenQuiet,
	}
	if p.metrics != nil {
		p.metrics.SetTokenState(opts.Mint, string(domain.TokenQuiet))
	}
	return p
}

// SessionID returns the id of this processing session.
func (p *Processor) SessionID() string {
	return p.sessionID
}

// Process runs one flow through the pipeline and hands the result to the sinks.
// Returns nil for skipped flows. Sink failures are logged and counted, never
// returned: the detectors have already advanced.
func (p *Processor) Process(ctx context.Context, f *domain.Flow) *Result {
	start := time.Now()

	p.feed.Lock()
	defer p.feed.Unlock()

	p.mu.Lock()
	res, reason := p.process(f)
	p.mu.Unlock()

	if res == nil {
		if p.metrics != nil {
			p.metrics.RecordSkip(reason)
		}
		return nil
	}

	p.dispatch(ctx, res)
	if p.metrics != nil {
		p.metrics.RecordFlow(f.Slot, f.Timestamp, time.Since(start).Seconds())
	}
	return res
}

func (p *Processor) process(f *domain.Flow) (*Result, string) {
	if f == nil || !f.Validate() {
		p.status.Skipped++
		return nil, SkipInvalid
	}
	if f.Mint != "" && f.Mint != p.mint {
		p.status.Skipped++
		return nil, SkipForeignMint
	}
	if p.status.Flows > 0 && f.Timestamp < p.status.LastFlowTime {
		p.status.Skipped++
		p.log.Warnw("out of order flow skipped",
			"signature", f.Signature,
			"timestamp", f.Timestamp,
			"last_flow_time", p.status.LastFlowTime,
		)
		return nil, SkipOutOfOrder
	}
	key := f.Key()
	if _, dup := p.seen[key]; dup {
		p.status.Skipped++
		return nil, SkipDuplicate
	}
	p.seen[key] = struct{}{}
	if f.Mint == "" {
		cp := *f
		cp.Mint = p.mint
		f = &cp
	}

	ts := f.Timestamp
	p.signals.ObserveFlow(f)
	p.silence.OnWalletTrade(f.Wallet, ts, f.Direction)

	events := p.whales.Process(f)
	p.tracker.ObserveFlow(f)
	for _, ev := range events {
		p.tracker.ObserveWhaleEvent(ev.Wallet, ev.EventTime)
	}

	res := &Result{
		Mint:        p.mint,
		Flow:        f,
		WhaleEvents: events,
	}
	if sig, ok := p.signals.OnWhaleEvents(f, events); ok {
		res.Signals = append(res.Signals, sig)
	}
	p.evaluate(res, f)
	if p.applyDrop {
		p.silence.ApplyActivityDrop(f.Wallet, ts)
	}
	res.SilenceEvents = p.silence.DrainEvents()

	p.status.Flows++
	p.status.LastFlowTime = ts
	p.finish(res)
	return res, ""
}

// evaluate runs the token-wide silence check, the exhaustion signal and at
// most one lifecycle step.
func (p *Processor) evaluate(res *Result, f *domain.Flow) {
	ts := f.Timestamp
	res.Statuses = p.silence.OnTokenActivity(ts)
	if sig, ok := p.signals.CheckExhaustion(f); ok {
		res.Signals = append(res.Signals, sig)
	}

	tr, ok := p.tracker.Evaluate(ts)
	// signals of the igniting flow belong to the episode it opens
	for i := range res.Signals {
		res.Signals[i].EpisodeID = p.tracker.EpisodeID()
	}
	if !ok {
		return
	}
	res.Transition = &tr
	p.history = append(p.history, tr)
	for addr, st := range p.silence.OnStateTransition(tr.To, tr.Time) {
		res.Statuses[addr] = st
	}
	p.log.Infow("state transition",
		"from", tr.From,
		"to", tr.To,
		"trigger", tr.Trigger,
		"severity", tr.Severity,
		"episode", tr.EpisodeID,
		"time", tr.Time,
	)
}

func (p *Processor) finish(res *Result) {
	res.State = p.tracker.State()

	p.status.State = res.State
	p.status.EpisodeID = p.tracker.EpisodeID()
	p.status.WhaleEvents += len(res.WhaleEvents)
	p.status.SilenceEvents += len(res.SilenceEvents)
	p.status.WalletSignals += len(res.Signals)
	p.emitted = append(p.emitted, res.Signals...)
	p.status.EarlyWallets = p.signals.EarlyCount()
	p.status.WaveEarly = p.signals.WaveEarlyCount()
	if res.Transition != nil {
		p.status.Transitions++
	}
	sum := p.silence.Summary()
	p.status.SilentWallets = sum.Silent
	p.status.Wallets = sum.Eligible

	if p.metrics == nil {
		return
	}
	for _, ev := range res.WhaleEvents {
		p.metrics.RecordWhaleEvent(ev.EventType)
	}
	for _, ev := range res.SilenceEvents {
		p.metrics.RecordSilenceEvent(ev.Pattern)
	}
	for _, sig := range res.Signals {
		p.metrics.RecordWalletSignal(sig.Signals)
	}
	if res.Transition != nil {
		p.metrics.RecordTransition(p.mint, string(res.Transition.To), res.Transition.Severity)
	}
	p.metrics.SetWalletCounts(p.mint, sum.Eligible, sum.Silent)
}

func (p *Processor) dispatch(ctx context.Context, res *Result) {
	for _, s := range p.sinks {
		if err := s.Handle(ctx, res); err != nil {
			p.mu.Lock()
			p.status.SinkErrors++
			p.mu.Unlock()
			if p.metrics != nil {
				p.metrics.RecordSinkError(s.Name())
			}
			p.log.Errorw("sink failed", "sink", s.Name(), "error", err)
		}
	}
}

// Run processes flows until the channel closes or ctx is cancelled.
func (p *Processor) Run(ctx context.Context, flows <-chan *domain.Flow) error {
	p.log.Infow("processor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-flows:
			if !ok {
				p.log.Infow("flow stream closed", "status", p.Status())
				return nil
			}
			p.Process(ctx, f)
		}
	}
}

// Status returns a snapshot of the processor counters.
func (p *Processor) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Transitions returns every transition seen in this session.
func (p *Processor) Transitions() []domain.StateTransition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.StateTransition, len(p.history))
	copy(out, p.history)
	return out
}

// SilenceStatuses returns the current latch of every tracked wallet.
func (p *Processor) SilenceStatuses() map[string]domain.SilenceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.silence.Statuses()
}

// SilenceSummary returns the silent share of tracked wallets.
func (p *Processor) SilenceSummary() silence.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.silence.Summary()
}

// WhaleStats returns the streaming detector counters.
func (p *Processor) WhaleStats() whale.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.whales.Stats()
}

// WalletSignals returns every wallet signal emitted in this session.
func (p *Processor) WalletSignals() []domain.WalletSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.WalletSignal, len(p.emitted))
	copy(out, p.emitted)
	return out
}

// WhaleEvents returns every whale event emitted in this session.
func (p *Processor) WhaleEvents() []domain.WhaleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.whales.Events()
}
