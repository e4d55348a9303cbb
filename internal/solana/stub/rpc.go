// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"wallet-signal-lab/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// ErrInjected is returned by GetTransaction for signatures registered with FailFirst.
var ErrInjected = errors.New("injected failure")

// RPCClient implements solana.RPCClient over maps. Signatures are kept newest
// first per address and paged the way the real node pages them.
type RPCClient struct {
	mu           sync.Mutex
	transactions map[string]*solana.Transaction
	signatures   map[string][]solana.SignatureInfo
	failures     map[string]int
	calls        map[string]int
	slot         int64
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		transactions: make(map[string]*solana.Transaction),
		signatures:   make(map[string][]solana.SignatureInfo),
		failures:     make(map[string]int),
		calls:        make(map[string]int),
	}
}

// GetTransaction returns the stored transaction, or ErrInjected while
// failures remain for the signature.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[signature]++
	if c.failures[signature] > 0 {
		c.failures[signature]--
		return nil, ErrInjected
	}
	tx, ok := c.transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress pages through the stored signatures, honouring
// Before and Limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.signatures[address]
	start := 0
	if opts != nil && opts.Before != "" {
		start = len(sigs)
		for i, s := range sigs {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}
	end := len(sigs)
	if opts != nil && opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start >= end {
		return nil, nil
	}
	out := make([]solana.SignatureInfo, end-start)
	copy(out, sigs[start:end])
	return out, nil
}

// GetSlot returns the highest slot of the stored transactions.
func (c *RPCClient) GetSlot(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot, nil
}

// AddTransaction stores a transaction.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[tx.Signature] = tx
	if tx.Slot > c.slot {
		c.slot = tx.Slot
	}
}

// AddSignatures sets the newest-first signature list of an address.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signatures[address] = sigs
}

// FailFirst makes the next n GetTransaction calls for signature fail.
func (c *RPCClient) FailFirst(signature string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[signature] = n
}

// Calls returns how often GetTransaction was called for signature.
func (c *RPCClient) Calls(signature string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[signature]
}
