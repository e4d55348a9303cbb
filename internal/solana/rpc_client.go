package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultCommitment  = "confirmed"

	maxResponseBytes = 16 << 20
)

// Node-side error codes that clear up on their own and are retried.
const (
	codeBlockNotAvailable      = -32004
	codeNodeUnhealthy          = -32005
	codeMinContextSlotNotReach = -32016
)

// ErrMaxRetries wraps the last transport error once all attempts are used.
var ErrMaxRetries = errors.New("max retries exceeded")

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Retryable reports whether the node is expected to answer the same request
// successfully later.
func (e *RPCError) Retryable() bool {
	switch e.Code {
	case codeBlockNotAvailable, codeNodeUnhealthy, codeMinContextSlotNotReach:
		return true
	}
	return false
}

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	commitment  string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	limiter     *rate.Limiter // nil means unlimited
	requestID   atomic.Uint64
}

var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst.
// Retries consume tokens too.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCommitment sets the commitment level sent with every request.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		commitment:  DefaultCommitment,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// attemptError is a failed attempt that may be retried after wait.
type attemptError struct {
	err  error
	wait time.Duration // server-requested delay, 0 for none
}

// call performs a JSON-RPC call. Transport failures, 429/5xx responses and
// retryable node errors are retried with exponential backoff; other RPC
// errors are returned as *RPCError at once.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var last *attemptError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if last != nil && last.wait > wait {
				wait = last.wait
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = c.nextDelay(delay)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		raw, aerr := c.do(ctx, body)
		if aerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			last = aerr
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			last = &attemptError{err: fmt.Errorf("unmarshal response: %w", err)}
			continue
		}
		if resp.Error != nil {
			if resp.Error.Retryable() {
				last = &attemptError{err: resp.Error}
				continue
			}
			return resp.Error
		}

		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}

	if last == nil {
		return fmt.Errorf("%s: %w", method, ErrMaxRetries)
	}
	return fmt.Errorf("%s: %w: %w", method, ErrMaxRetries, last.err)
}

// do sends one request and returns the response body of a 200 answer.
func (c *HTTPClient) do(ctx context.Context, body []byte) ([]byte, *attemptError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &attemptError{
			err:  errors.New("rate limited (429)"),
			wait: retryAfter(resp.Header.Get("Retry-After"), c.maxDelay),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &attemptError{err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 256))}
	}
	return raw, nil
}

func (c *HTTPClient) nextDelay(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * c.backoffMult)
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

// retryAfter parses a Retry-After header given in seconds, capped at max.
func retryAfter(header string, max time.Duration) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > max {
		return max
	}
	return d
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// GetTransaction retrieves a transaction by signature. Returns nil, nil when
// the node does not know the signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.toTransaction(signature), nil
}

type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *struct {
		Message *struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

type getTransactionMeta struct {
	Err             interface{} `json:"err"`
	Fee             int64       `json:"fee"`
	PreBalances     []int64     `json:"preBalances"`
	PostBalances    []int64     `json:"postBalances"`
	LogMessages     []string    `json:"logMessages"`
	LoadedAddresses *struct {
		Writable []string `json:"writable"`
		Readonly []string `json:"readonly"`
	} `json:"loadedAddresses"`
}

// toTransaction flattens the RPC shape. Addresses loaded from lookup tables
// are appended to the account keys (writable first) so balance indexes line up.
func (r *getTransactionResult) toTransaction(signature string) *Transaction {
	tx := &Transaction{Slot: r.Slot, Signature: signature}
	if r.BlockTime != nil {
		tx.BlockTime = *r.BlockTime
	}

	var keys []string
	if r.Transaction != nil && r.Transaction.Message != nil {
		keys = append(keys, r.Transaction.Message.AccountKeys...)
	}

	if m := r.Meta; m != nil {
		tx.Meta = &TransactionMeta{
			Err:          m.Err,
			Fee:          m.Fee,
			PreBalances:  m.PreBalances,
			PostBalances: m.PostBalances,
			LogMessages:  m.LogMessages,
		}
		if m.LoadedAddresses != nil {
			keys = append(keys, m.LoadedAddresses.Writable...)
			keys = append(keys, m.LoadedAddresses.Readonly...)
		}
	}

	if keys != nil {
		tx.Message = &TransactionMessage{AccountKeys: keys}
	}
	return tx
}

// GetSignaturesForAddress retrieves signatures for an address, newest first.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	cfg := map[string]interface{}{"commitment": c.commitment}
	if opts != nil {
		if opts.Before != "" {
			cfg["before"] = opts.Before
		}
		if opts.Until != "" {
			cfg["until"] = opts.Until
		}
		if opts.Limit > 0 {
			cfg["limit"] = opts.Limit
		}
	}

	var result []struct {
		Signature string      `json:"signature"`
		Slot      int64       `json:"slot"`
		BlockTime *int64      `json:"blockTime"`
		Err       interface{} `json:"err"`
	}
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, cfg}, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}
	return sigs, nil
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var slot int64
	params := []interface{}{map[string]interface{}{"commitment": c.commitment}}
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}
