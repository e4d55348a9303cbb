package observability

import (
	"context"
	"time"

	"wallet-signal-lab/internal/solana"
)

// InstrumentedRPC records call latency for every RPC method.
type InstrumentedRPC struct {
	next    solana.RPCClient
	metrics *Metrics
}

// InstrumentRPC wraps next so each call is observed in m.
func InstrumentRPC(next solana.RPCClient, m *Metrics) *InstrumentedRPC {
	return &InstrumentedRPC{next: next, metrics: m}
}

func (r *InstrumentedRPC) observe(method string, start time.Time) {
	r.metrics.RecordRPCLatency(method, time.Since(start).Seconds())
}

func (r *InstrumentedRPC) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	defer r.observe("getTransaction", time.Now())
	return r.next.GetTransaction(ctx, signature)
}

func (r *InstrumentedRPC) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	defer r.observe("getSignaturesForAddress", time.Now())
	return r.next.GetSignaturesForAddress(ctx, address, opts)
}

func (r *InstrumentedRPC) GetSlot(ctx context.Context) (int64, error) {
	defer r.observe("getSlot", time.Now())
	return r.next.GetSlot(ctx)
}

var _ solana.RPCClient = (*InstrumentedRPC)(nil)
