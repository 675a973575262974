// Package rpcclient maintains the persistent WebSocket connection to a local
// wallet daemon: one transport, a pending-request table correlating responses
// to callers by request id, and an event bus for unsolicited daemon pushes.
package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cskr/pubsub"

	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

// State is the connection lifecycle phase. Transitions are
// Disconnected -> Connecting -> Connected -> Disconnected; at most one
// connection attempt is in flight at a time.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// callResult settles a pending request: either the matching response envelope
// or the error that voided it. Exactly one is delivered per request.
type callResult struct {
	env *wire.Envelope
	err error
}

// Client is a reconnecting RPC client for the wallet daemon.
type Client struct {
	config clientConfig
	urlStr string

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.Mutex

	send chan *wire.Envelope

	// Overall client lifetime context.
	clientCtx    context.Context
	clientCancel context.CancelFunc

	// Context for the current connection's pumps. Cancelled and recreated on
	// reconnect.
	pumpCtx    context.Context
	pumpCancel context.CancelFunc
	pumpWg     sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]chan callResult

	events *pubsub.PubSub

	isClosed bool
	closedMu sync.Mutex

	reconnectingMu sync.Mutex
	isReconnecting bool
}

// New creates a client without dialing. Call Connect to bring the connection
// up.
func New(urlStr string, opts ...Option) *Client {
	clientCtx, clientCancel := context.WithCancel(context.Background())
	c := &Client{
		config: clientConfig{
			logger:            slog.Default(),
			requestTimeout:    defaultRequestTimeout,
			dialTimeout:       defaultDialTimeout,
			writeTimeout:      defaultWriteTimeout,
			pingInterval:      defaultPingInterval,
			reconnectDelayMin: defaultReconnectMin,
			reconnectDelayMax: defaultReconnectMax,
			eventBuffer:       defaultEventBuffer,
		},
		urlStr:       urlStr,
		clientCtx:    clientCtx,
		clientCancel: clientCancel,
		send:         make(chan *wire.Envelope, defaultSendBuffer),
		pending:      make(map[string]chan callResult),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.config.pingInterval < 0 {
		c.config.pingInterval = 0
	}
	if c.config.dialOptions == nil {
		c.config.dialOptions = &websocket.DialOptions{HTTPClient: httpClientFor(&c.config)}
	}
	c.events = pubsub.New(c.config.eventBuffer)
	return c
}

// Connect creates a client and establishes the initial connection. When
// auto-reconnect is enabled a failed initial dial still returns a usable
// client; the reconnect loop keeps trying in the background.
func Connect(urlStr string, opts ...Option) (*Client, error) {
	c := New(urlStr, opts...)
	if err := c.Connect(c.clientCtx); err != nil {
		if !c.config.autoReconnect {
			c.Close()
			return nil, fmt.Errorf("walletrpc: initial connection failed: %w", err)
		}
		c.config.logger.Info("walletrpc: initial connection failed, reconnect loop active", "err", err)
	}
	return c, nil
}

// ConnectWithOptions creates and connects a client from an Options struct.
func ConnectWithOptions(urlStr string, opts Options) (*Client, error) {
	return Connect(urlStr, opts.options()...)
}

// Connect brings the connection up. It is idempotent while a connection is
// pending or open: concurrent callers racing to connect result in exactly one
// dial. With auto-reconnect enabled a failed dial hands off to the reconnect
// loop and returns nil.
func (c *Client) Connect(ctx context.Context) error {
	c.closedMu.Lock()
	if c.isClosed {
		c.closedMu.Unlock()
		return ErrClientClosed
	}
	c.closedMu.Unlock()

	// The check-and-set must happen before the dial is issued, not after:
	// concurrent callers observe Connecting and back off.
	c.stateMu.Lock()
	if c.state != StateDisconnected {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.stateMu.Unlock()

	if err := c.establishConnection(ctx); err != nil {
		c.setState(StateDisconnected)
		if c.config.autoReconnect {
			go c.reconnectLoop()
			return nil
		}
		return err
	}
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// establishConnection dials the daemon and starts the pumps for the new
// connection. Caller holds the Connecting state.
func (c *Client) establishConnection(ctx context.Context) error {
	c.connMu.Lock()
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.connMu.Unlock()
		c.pumpWg.Wait() // let old pumps fully stop before replacing the conn
		c.connMu.Lock()
	}
	if c.conn != nil {
		c.conn.Close(websocket.StatusAbnormalClosure, "stale connection being replaced")
		c.conn = nil
	}
	c.connMu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(ctx, c.config.dialTimeout)
	conn, httpResp, err := websocket.Dial(dialCtx, c.urlStr, c.config.dialOptions)
	dialCancel()
	if err != nil {
		if httpResp != nil {
			return fmt.Errorf("dial %s: %w (status: %s)", c.urlStr, err, httpResp.Status)
		}
		return fmt.Errorf("dial %s: %w", c.urlStr, err)
	}
	conn.SetReadLimit(1 << 24) // daemon frames can carry full transaction histories

	c.connMu.Lock()
	c.conn = conn
	c.pumpCtx, c.pumpCancel = context.WithCancel(c.clientCtx)
	c.pumpWg = sync.WaitGroup{}
	c.pumpWg.Add(2)
	go c.readPump(conn, c.pumpCtx, c.pumpCancel)
	go c.writePump(c.pumpCtx)
	if c.config.pingInterval > 0 {
		c.pumpWg.Add(1)
		go c.pingLoop(c.pumpCtx)
	}
	c.connMu.Unlock()

	c.setState(StateConnected)
	c.config.logger.Info("walletrpc: connected to daemon", "url", c.urlStr)
	return nil
}

func (c *Client) getConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// readPump reads frames from one connection until it fails, then tears the
// connection down: every pending request is failed with ErrConnectionLost and,
// when enabled, the reconnect loop takes over.
func (c *Client) readPump(conn *websocket.Conn, pumpCtx context.Context, pumpCancel context.CancelFunc) {
	defer func() {
		pumpCancel()

		c.connMu.Lock()
		if c.conn == conn {
			c.conn.Close(websocket.StatusAbnormalClosure, "read pump terminated")
			c.conn = nil
		}
		c.connMu.Unlock()

		c.setState(StateDisconnected)
		c.failPending(ErrConnectionLost)
		c.pumpWg.Done()

		c.closedMu.Lock()
		permanentlyClosed := c.isClosed
		c.closedMu.Unlock()
		if c.config.autoReconnect && !permanentlyClosed {
			c.reconnectingMu.Lock()
			active := c.isReconnecting
			c.reconnectingMu.Unlock()
			if !active {
				go c.reconnectLoop()
			}
		}
	}()

	for {
		select {
		case <-pumpCtx.Done():
			return
		default:
		}

		_, data, err := conn.Read(pumpCtx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				c.config.logger.Info("walletrpc: read error", "err", err, "status", int(status))
			}
			return
		}

		env, err := wire.Decode(data)
		if err != nil {
			// Malformed frames are dropped; the connection survives.
			c.config.logger.Info("walletrpc: dropping malformed frame", "err", err)
			continue
		}

		if env.Ack {
			c.settle(env)
			continue
		}
		c.publishEvent(env)
	}
}

// settle delivers a response to its pending request. Removal and delivery are
// atomic with respect to other inbound frames; a duplicate frame for an
// already-settled id is a logged no-op.
func (c *Client) settle(env *wire.Envelope) {
	c.pendingMu.Lock()
	ch, ok := c.pending[env.RequestID]
	if ok {
		delete(c.pending, env.RequestID)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.config.logger.Info("walletrpc: response for unknown or already-settled request", "request_id", env.RequestID, "command", env.Command)
		return
	}
	ch <- callResult{env: env} // buffered, never blocks
}

// failPending rejects every outstanding request. Called on disconnect and on
// permanent close; by then no response can arrive for them.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- callResult{err: err}
	}
	c.pendingMu.Unlock()
}

func (c *Client) writePump(pumpCtx context.Context) {
	defer c.pumpWg.Done()
	for {
		select {
		case env := <-c.send:
			conn := c.getConn()
			if conn == nil {
				c.config.logger.Info("walletrpc: no active connection, dropping outbound frame", "command", env.Command)
				continue
			}
			data, err := wire.Encode(env)
			if err != nil {
				c.config.logger.Info("walletrpc: dropping unencodable frame", "command", env.Command, "err", err)
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(pumpCtx, c.config.writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				c.config.logger.Info("walletrpc: write error", "err", err)
				// A failed write usually means the connection is gone; let the
				// read pump observe it and run the teardown path.
				if c.pumpCancel != nil {
					c.pumpCancel()
				}
				return
			}
		case <-pumpCtx.Done():
			return
		case <-c.clientCtx.Done():
			return
		}
	}
}

func (c *Client) pingLoop(pumpCtx context.Context) {
	defer c.pumpWg.Done()
	ticker := time.NewTicker(c.config.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn := c.getConn()
			if conn == nil {
				continue
			}
			pingCtx, pingCancel := context.WithTimeout(pumpCtx, c.config.pingInterval/2)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				c.config.logger.Info("walletrpc: ping failed", "err", err)
				if c.pumpCancel != nil {
					c.pumpCancel()
				}
				return
			}
		case <-pumpCtx.Done():
			return
		case <-c.clientCtx.Done():
			return
		}
	}
}

func (c *Client) reconnectLoop() {
	c.reconnectingMu.Lock()
	if c.isReconnecting {
		c.reconnectingMu.Unlock()
		return
	}
	c.isReconnecting = true
	c.reconnectingMu.Unlock()

	defer func() {
		c.reconnectingMu.Lock()
		c.isReconnecting = false
		c.reconnectingMu.Unlock()
	}()

	attempts := 0
	delay := c.config.reconnectDelayMin
	for {
		c.closedMu.Lock()
		if c.isClosed {
			c.closedMu.Unlock()
			return
		}
		c.closedMu.Unlock()

		select {
		case <-c.clientCtx.Done():
			return
		default:
		}

		if c.config.reconnectAttempts > 0 && attempts >= c.config.reconnectAttempts {
			c.config.logger.Info("walletrpc: max reconnect attempts reached", "attempts", attempts)
			c.Close()
			return
		}

		// Jitter spreads retries out when several clients share a daemon.
		jitterRange := int(delay / 4)
		if jitterRange <= 0 {
			jitterRange = 1
		}
		sleep := delay + time.Duration(rand.Intn(jitterRange))

		select {
		case <-time.After(sleep):
		case <-c.clientCtx.Done():
			return
		}

		c.stateMu.Lock()
		if c.state != StateDisconnected {
			// Someone else already brought the connection up.
			c.stateMu.Unlock()
			return
		}
		c.state = StateConnecting
		c.stateMu.Unlock()

		c.config.logger.Info("walletrpc: reconnecting", "attempt", attempts+1)
		if err := c.establishConnection(c.clientCtx); err == nil {
			c.config.logger.Info("walletrpc: reconnected")
			return
		} else {
			c.config.logger.Info("walletrpc: reconnect attempt failed", "attempt", attempts+1, "err", err)
			c.setState(StateDisconnected)
		}

		attempts++
		delay *= 2
		if delay > c.config.reconnectDelayMax {
			delay = c.config.reconnectDelayMax
		}
	}
}

// Request sends a command to the named daemon service and blocks until the
// matching response arrives or the request is voided. Every call settles
// exactly once: with the response data, with an *RPCError when the daemon
// reports success=false, with ErrConnectionLost when the transport drops
// mid-flight, or with the context error on cancellation or timeout.
//
// Issued while disconnected, a request fails fast with ErrNotConnected rather
// than queueing.
func (c *Client) Request(ctx context.Context, destination, command string, payload interface{}) (json.RawMessage, error) {
	c.closedMu.Lock()
	if c.isClosed {
		c.closedMu.Unlock()
		return nil, ErrClientClosed
	}
	c.closedMu.Unlock()

	if c.State() != StateConnected {
		return nil, fmt.Errorf("%w: cannot send %s/%s", ErrNotConnected, destination, command)
	}

	env, err := wire.NewRequest(destination, command, payload)
	if err != nil {
		return nil, err
	}

	// Registration happens-before send: a response racing in on the read pump
	// always finds the table entry.
	respCh := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[env.RequestID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		// Explicit cancellation support: abandoning the wait removes the
		// entry instead of leaving it until disconnect.
		c.pendingMu.Lock()
		delete(c.pending, env.RequestID)
		c.pendingMu.Unlock()
	}()

	reqCtx := ctx
	if c.config.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.config.requestTimeout)
		defer cancel()
	}

	select {
	case c.send <- env:
	case <-reqCtx.Done():
		return nil, fmt.Errorf("walletrpc: %s/%s not sent: %w", destination, command, reqCtx.Err())
	case <-c.clientCtx.Done():
		return nil, ErrClientClosed
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			return nil, res.err
		}
		return c.resultData(destination, command, res.env)
	case <-reqCtx.Done():
		return nil, fmt.Errorf("walletrpc: %s/%s: %w", destination, command, reqCtx.Err())
	case <-c.clientCtx.Done():
		return nil, ErrClientClosed
	}
}

// resultData surfaces a daemon-reported failure as *RPCError and otherwise
// returns the opaque response data.
func (c *Client) resultData(destination, command string, env *wire.Envelope) (json.RawMessage, error) {
	var status struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if len(env.Data) > 0 {
		// Unknown shapes pass through untouched; only an explicit
		// success=false counts as failure.
		_ = json.Unmarshal(env.Data, &status)
	}
	if status.Success != nil && !*status.Success {
		return nil, &RPCError{Destination: destination, Command: command, Message: status.Error}
	}
	return env.Data, nil
}

// Close permanently shuts the client down. Pending requests are failed with
// ErrConnectionLost, event subscriptions are closed, and the socket is torn
// down. A closed client cannot reconnect.
func (c *Client) Close() error {
	c.closedMu.Lock()
	if c.isClosed {
		c.closedMu.Unlock()
		return ErrClientClosed
	}
	c.isClosed = true
	c.closedMu.Unlock()

	// Settle pending requests before tearing the contexts down so waiters
	// observe ErrConnectionLost rather than a cancellation.
	c.failPending(ErrConnectionLost)
	c.clientCancel()
	c.pumpWg.Wait()

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "client closed")
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setState(StateDisconnected)
	c.events.Shutdown()
	c.config.logger.Info("walletrpc: client closed")
	return nil
}

// Do issues a request and unmarshals the response data into T.
func Do[T any](ctx context.Context, c *Client, destination, command string, payload interface{}) (*T, error) {
	raw, err := c.Request(ctx, destination, command, payload)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return new(T), nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("walletrpc: unmarshal %s/%s response into %T: %w", destination, command, out, err)
	}
	return &out, nil
}
