package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wallet-signal-lab/internal/logger"
)

// ErrClientClosed is returned by operations on a closed client.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// Commitment is the commitment level requested for notifications.
	Commitment string
	// BufferSize is the notification channel capacity per subscription.
	BufferSize int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        DefaultCommitment,
		BufferSize:        10000,
	}
}

func mergeWSConfig(def, cfg WSClientConfig) WSClientConfig {
	if cfg.ReconnectDelay > 0 {
		def.ReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnectDelay > 0 {
		def.MaxReconnectDelay = cfg.MaxReconnectDelay
	}
	if cfg.PingInterval > 0 {
		def.PingInterval = cfg.PingInterval
	}
	if cfg.ReadTimeout > 0 {
		def.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		def.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.SubscribeTimeout > 0 {
		def.SubscribeTimeout = cfg.SubscribeTimeout
	}
	if cfg.Commitment != "" {
		def.Commitment = cfg.Commitment
	}
	if cfg.BufferSize > 0 {
		def.BufferSize = cfg.BufferSize
	}
	return def
}

// logsSubscription is one caller-visible logs stream. The server-side id
// changes on every reconnect, the stream does not.
type logsSubscription struct {
	filter LogsFilter
	in     chan LogNotification
	quit   chan struct{}
	once   sync.Once
}

func (s *logsSubscription) stop() {
	s.once.Do(func() { close(s.quit) })
}

// forward moves notifications to out and closes out when the stream stops.
func (s *logsSubscription) forward(out chan<- LogNotification, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case n := <-s.in:
			select {
			case out <- n:
			case <-s.quit:
				return
			case <-done:
				return
			}
		case <-s.quit:
			return
		case <-done:
			return
		}
	}
}

type subscribeReply struct {
	id  int64
	err error
}

// WSClientImpl implements WSClient using gorilla/websocket.
// Subscriptions survive reconnects: filters are re-sent on the new connection
// and notifications keep flowing into the same channel.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      *logger.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subsMu sync.RWMutex
	subs   map[int64]*logsSubscription // by server subscription id

	pendingMu sync.Mutex
	pending   map[uint64]chan subscribeReply // by request id

	reconnects   atomic.Uint64
	reconnecting atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
// Zero fields of config fall back to DefaultWSConfig values.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = mergeWSConfig(cfg, *config)
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		log:      logger.Get().Named("solana_ws"),
		subs:     make(map[int64]*logsSubscription),
		pending:  make(map[uint64]chan subscribeReply),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// SetLogger replaces the client logger.
func (c *WSClientImpl) SetLogger(l *logger.Logger) {
	c.log = l.Named("solana_ws")
}

// Reconnects returns how many times the connection was re-established.
func (c *WSClientImpl) Reconnects() uint64 {
	return c.reconnects.Load()
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to transaction logs matching the filter. The
// returned channel is closed when ctx is cancelled (the server subscription
// is dropped too) or when the client is closed.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	id, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	sub := &logsSubscription{
		filter: filter,
		in:     make(chan LogNotification, c.config.BufferSize),
		quit:   make(chan struct{}),
	}
	out := make(chan LogNotification)

	c.subsMu.Lock()
	c.subs[id] = sub
	c.subsMu.Unlock()

	go sub.forward(out, c.done)
	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(sub)
		case <-sub.quit:
		case <-c.done:
		}
	}()

	c.log.Infow("logs subscription active", "subscription", id, "mentions", filter.Mentions)
	return out, nil
}

// unsubscribe stops the stream and tells the node, best effort.
func (c *WSClientImpl) unsubscribe(sub *logsSubscription) {
	sub.stop()

	c.subsMu.Lock()
	var id int64
	found := false
	for sid, s := range c.subs {
		if s == sub {
			id, found = sid, true
			delete(c.subs, sid)
			break
		}
	}
	c.subsMu.Unlock()

	if found {
		if err := c.write(wsRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "logsUnsubscribe",
			Params:  []interface{}{id},
		}); err != nil {
			c.log.Debugw("unsubscribe failed", "subscription", id, "error", err)
		}
	}
}

// Close closes the WebSocket connection and every subscription channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.stop()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnecting.Swap(true) {
				go c.reconnect(conn, delay)
			}
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		delay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// sleep waits for d and reports false if the client closed meanwhile.
func (c *WSClientImpl) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect replaces a broken connection and re-sends every filter.
func (c *WSClientImpl) reconnect(broken *websocket.Conn, delay time.Duration) {
	defer c.reconnecting.Store(false)

	if !c.sleep(delay) {
		return
	}

	c.connMu.Lock()
	if c.conn != broken && c.conn != nil {
		c.connMu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.log.Warnw("reconnect failed", "delay", delay, "error", err)
		return
	}

	c.reconnects.Add(1)
	c.log.Infow("reconnected, resubscribing", "reconnects", c.reconnects.Load())
	c.resubscribeAll()
}

func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	old := c.subs
	c.subs = make(map[int64]*logsSubscription, len(old))
	c.subsMu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.subscribe(ctx, sub.filter)
		cancel()
		if err != nil {
			// keep it registered under the old id so the next reconnect retries it
			c.log.Warnw("resubscribe failed", "subscription", oldID, "error", err)
			newID = oldID
		}

		c.subsMu.Lock()
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

// subscribe sends logsSubscribe and waits for the server subscription id.
func (c *WSClientImpl) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	var mentions map[string]interface{}
	if len(filter.Mentions) > 0 {
		mentions = map[string]interface{}{"mentions": filter.Mentions}
	} else {
		mentions = map[string]interface{}{"all": nil}
	}

	reqID := c.requestID.Add(1)
	reply := make(chan subscribeReply, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = reply
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params:  []interface{}{mentions, map[string]string{"commitment": c.config.Commitment}},
	})
	if err != nil {
		forget()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case r, ok := <-reply:
		if !ok {
			return 0, ErrClientClosed
		}
		return r.id, r.err
	case <-timer.C:
		forget()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

func (c *WSClientImpl) write(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// handleMessage routes a frame: replies carry an id, notifications a method.
func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Debugw("unparsable message", "error", err)
		return
	}

	switch {
	case msg.Method == "logsNotification" && msg.Params != nil:
		c.handleLogsNotification(msg.Params)
	case msg.ID != nil:
		c.handleReply(*msg.ID, msg.Result, msg.Error)
	}
}

func (c *WSClientImpl) handleReply(id uint64, result json.RawMessage, rpcErr *RPCError) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if !ok {
		// unsubscribe acknowledgements land here
		if rpcErr != nil {
			c.log.Warnw("error response", "id", id, "code", rpcErr.Code, "message", rpcErr.Message)
		}
		return
	}

	var r subscribeReply
	switch {
	case rpcErr != nil:
		r.err = rpcErr
	default:
		if err := json.Unmarshal(result, &r.id); err != nil {
			r.err = fmt.Errorf("decode subscription id: %w", err)
		}
	}
	ch <- r
}

// handleLogsNotification queues a notification for its subscription. The
// send blocks when the buffer is full; notifications are never dropped.
func (c *WSClientImpl) handleLogsNotification(p *wsNotificationParams) {
	n := LogNotification{
		Signature: p.Result.Value.Signature,
		Logs:      p.Result.Value.Logs,
		Err:       p.Result.Value.Err,
	}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}

	c.subsMu.RLock()
	sub, ok := c.subs[p.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case sub.in <- n:
	case <-sub.quit:
	case <-c.done:
	}
}

func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// the read loop notices the broken connection
					c.log.Debugw("ping failed", "error", err)
				}
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage is any frame sent by the node.
type wsMessage struct {
	ID     *uint64               `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Error  *RPCError             `json:"error"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
