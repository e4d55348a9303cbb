package ingestion

import (
	"context"
	"fmt"
	"time"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/solana"
)

const (
	maxRetries      = 3
	baseRetryDelay  = 500 * time.Millisecond
	defaultPageSize = 1000
)

// retryGetTransaction fetches a transaction with exponential backoff retry.
func retryGetTransaction(ctx context.Context, rpc solana.RPCClient, signature string, log *logger.Logger) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := rpc.GetTransaction(ctx, signature)
		if err == nil {
			return tx, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// 500ms, 1s, 2s
		delay := baseRetryDelay * time.Duration(1<<attempt)
		log.Debugw("retry getTransaction",
			"signature", signature,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// RPCFlowSource backfills flows for a mint from Solana RPC.
// It walks getSignaturesForAddress(mint) newest first and converts each
// successful transaction with FlowFromTransaction.
type RPCFlowSource struct {
	rpc      solana.RPCClient
	pageSize int
	log      *logger.Logger
}

// NewRPCFlowSource creates an RPC-backed flow source.
func NewRPCFlowSource(rpc solana.RPCClient, log *logger.Logger) *RPCFlowSource {
	if log == nil {
		log = logger.Nop()
	}
	return &RPCFlowSource{
		rpc:      rpc,
		pageSize: defaultPageSize,
		log:      log.Named("rpc_source"),
	}
}

// WithPageSize overrides the signature page size.
func (s *RPCFlowSource) WithPageSize(n int) *RPCFlowSource {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// Fetch retrieves flows whose block time falls in [from, to).
func (s *RPCFlowSource) Fetch(ctx context.Context, mint string, from, to int64) ([]*domain.Flow, error) {
	var (
		flows   []*domain.Flow
		before  string
		skipped int
	)

	for {
		sigs, err := s.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{
			Before: before,
			Limit:  s.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures for %s: %w", mint, err)
		}
		if len(sigs) == 0 {
			break
		}

		done := false
		for _, sig := range sigs {
			if sig.BlockTime != nil {
				if *sig.BlockTime >= to {
					continue
				}
				if *sig.BlockTime < from {
					done = true
					break
				}
			}
			if sig.Err != nil {
				continue
			}

			tx, err := retryGetTransaction(ctx, s.rpc, sig.Signature, s.log)
			if err != nil {
				return nil, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
			}
			if tx == nil {
				skipped++
				continue
			}
			if tx.BlockTime < from || tx.BlockTime >= to {
				continue
			}
			f, ok := FlowFromTransaction(tx, mint)
			if !ok {
				skipped++
				continue
			}
			flows = append(flows, f)
		}

		if done || len(sigs) < s.pageSize {
			break
		}
		before = sigs[len(sigs)-1].Signature
	}

	s.log.Infow("rpc fetch complete",
		"mint", mint,
		"from", from,
		"to", to,
		"flows", len(flows),
		"skipped", skipped,
	)
	return flows, nil
}
