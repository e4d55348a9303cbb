package ingestion

import (
	"context"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/solana"
)

// LogsSubscriber is the subset of the WebSocket client the live source needs.
type LogsSubscriber interface {
	SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error)
}

// WSFlowSource provides real-time flows via a logsSubscribe on the mint.
// Each notification is resolved with getTransaction to read balances.
type WSFlowSource struct {
	ws  LogsSubscriber
	rpc solana.RPCClient
	log *logger.Logger
}

// NewWSFlowSource creates a WebSocket-based flow source.
func NewWSFlowSource(ws LogsSubscriber, rpc solana.RPCClient, log *logger.Logger) *WSFlowSource {
	if log == nil {
		log = logger.Nop()
	}
	return &WSFlowSource{ws: ws, rpc: rpc, log: log.Named("ws_source")}
}

// Subscribe returns a channel of flows touching mint.
func (s *WSFlowSource) Subscribe(ctx context.Context, mint string) (<-chan *domain.Flow, error) {
	logsCh, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{mint}})
	if err != nil {
		return nil, err
	}
	s.log.Infow("subscribed", "mint", mint)

	flowsCh := make(chan *domain.Flow, 100)
	go func() {
		defer close(flowsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case notif, ok := <-logsCh:
				if !ok {
					s.log.Warnw("logs channel closed", "mint", mint)
					return
				}
				f := s.resolve(ctx, mint, notif)
				if f == nil {
					continue
				}
				select {
				case flowsCh <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return flowsCh, nil
}

// resolve turns one log notification into a flow, or nil when the
// transaction failed, could not be fetched, or moved no SOL for its payer.
func (s *WSFlowSource) resolve(ctx context.Context, mint string, notif solana.LogNotification) *domain.Flow {
	if notif.Err != nil {
		return nil
	}

	tx, err := retryGetTransaction(ctx, s.rpc, notif.Signature, s.log)
	if err != nil || tx == nil {
		if ctx.Err() == nil {
			s.log.Warnw("transaction fetch failed, flow dropped",
				"signature", notif.Signature,
				"slot", notif.Slot,
				"error", err,
			)
		}
		return nil
	}

	f, ok := FlowFromTransaction(tx, mint)
	if !ok {
		s.log.Debugw("no flow in transaction", "signature", notif.Signature)
		return nil
	}
	return f
}
