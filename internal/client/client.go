// Package client implements a line-protocol client over raw TCP or WebSocket,
// optionally tunneled through a SOCKS4 proxy. It owns a background read loop
// that delivers incoming lines to subscribers, a rate-limited send path, and
// an idempotent disconnect protocol.
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/lawnchairsociety/mudlink/internal/floodguard"
	"github.com/lawnchairsociety/mudlink/internal/logger"
	"github.com/lawnchairsociety/mudlink/internal/socks4"
	"github.com/lawnchairsociety/mudlink/internal/transport"
)

// State describes the connection lifecycle. Disconnected is terminal:
// a disconnected client cannot be reused.
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

// Listener receives connection events. Zero or more listeners may be
// subscribed; each incoming line produces one MessageReceived call per
// listener, and ConnectionClosed fires at most once per client.
type Listener interface {
	MessageReceived(line string)
	ConnectionClosed()
}

// Recorder receives a copy of session traffic, e.g. for transcript
// persistence. Recording failures are logged, never propagated.
type Recorder interface {
	RecordSent(line string) error
	RecordReceived(line string) error
}

// Config holds the immutable connection parameters.
type Config struct {
	// Host and Port identify the remote endpoint.
	Host string
	Port int

	// WebSocketURL, if set, dials over WebSocket instead of raw TCP.
	WebSocketURL string

	// MinSendInterval is the minimum delay between the completion of one
	// send and the start of the next.
	MinSendInterval time.Duration
}

// Client is a single-use connection to a line-protocol server.
type Client struct {
	cfg Config

	// ctx is the client's cancellation scope, linked to the caller-supplied
	// parent so external cancellation and Disconnect converge on one signal.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // guards state, tr, readDone
	state    State
	tr       transport.Transport
	readDone chan struct{}

	listenerMu sync.RWMutex
	listeners  []Listener

	// sendSlot is a capacity-1 gate: holding the token means a send (plus
	// its post-send throttle delay) is in flight.
	sendSlot chan struct{}

	guard    *floodguard.Guard
	recorder Recorder

	teardownOnce sync.Once

	errMu   sync.Mutex
	readErr error
}

// New creates a client. The parent context is the caller's cancellation
// handle: cancelling it tears the client down the same way Disconnect does.
func New(parent context.Context, cfg Config) *Client {
	ctx, cancel := context.WithCancel(parent)

	c := &Client{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateUnconnected,
		sendSlot: make(chan struct{}, 1),
	}

	// Propagate external cancellation into the disconnect protocol.
	go func() {
		<-ctx.Done()
		c.Disconnect()
	}()

	return c
}

// Subscribe registers a listener for message and close events.
// Subscribing after the connection closed is a no-op for past events.
func (c *Client) Subscribe(l Listener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// SetFloodGuard installs a client-side flood guard consulted before each
// send. Must be called before Connect.
func (c *Client) SetFloodGuard(g *floodguard.Guard) {
	c.guard = g
}

// SetRecorder installs a transcript recorder. Must be called before Connect.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the fatal read fault that terminated the read loop, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

// Connect establishes a direct connection to the configured endpoint and
// starts the read loop. It returns once the connection is ready.
func (c *Client) Connect() error {
	return c.connect(func(ctx context.Context) (transport.Transport, error) {
		if c.cfg.WebSocketURL != "" {
			return transport.DialWebSocket(ctx, c.cfg.WebSocketURL)
		}
		return transport.DialTCP(ctx, c.addr())
	})
}

// ConnectProxy establishes the connection through a SOCKS4 proxy and starts
// the read loop. user is the SOCKS4 user-id field and may be empty.
func (c *Client) ConnectProxy(proxyHost string, proxyPort int, user string) error {
	proxyAddr := net.JoinHostPort(proxyHost, strconv.Itoa(proxyPort))
	return c.connect(func(ctx context.Context) (transport.Transport, error) {
		conn, err := socks4.Dial(ctx, proxyAddr, user, c.cfg.Host, c.cfg.Port)
		if err != nil {
			return nil, err
		}
		return transport.NewTCPTransport(conn), nil
	})
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) connect(dial func(context.Context) (transport.Transport, error)) error {
	c.mu.Lock()
	if c.state != StateUnconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	tr, err := dial(c.ctx)
	if err != nil {
		c.mu.Lock()
		// A disconnect may have raced the dial; Disconnected stays terminal.
		if c.state == StateConnecting {
			c.state = StateUnconnected
		}
		c.mu.Unlock()

		var perr *socks4.Error
		if errors.As(err, &perr) {
			// Proxy refusals carry their own taxonomy
			return err
		}
		return &ConnectionError{Addr: c.addr(), Err: err}
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnected while dialing
		c.mu.Unlock()
		tr.Close()
		return ErrAlreadyConnected
	}
	c.tr = tr
	c.state = StateConnected
	c.readDone = make(chan struct{})
	done := c.readDone
	c.mu.Unlock()

	logger.Info("Connected", "remote_addr", tr.RemoteAddr())

	go c.readLoop(tr, done)

	return nil
}

// readLoop delivers incoming lines to listeners until the stream ends.
// A clean close by the peer triggers disconnect; a genuine I/O fault is
// recorded and also triggers disconnect, so exactly one ConnectionClosed
// notification fires no matter which side initiated teardown.
func (c *Client) readLoop(tr transport.Transport, done chan struct{}) {
	defer close(done)

	for {
		line, err := tr.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("Server closed the connection", "remote_addr", tr.RemoteAddr())
				c.Disconnect()
			case c.ctx.Err() != nil:
				// Reads fail once disconnect closes the transport; this is
				// the expected way to wake the loop, not a fault.
				logger.Debug("Read loop stopped", "remote_addr", tr.RemoteAddr())
			default:
				c.errMu.Lock()
				c.readErr = &TransportFault{Op: "read", Err: err}
				c.errMu.Unlock()
				logger.Error("Read failed", "remote_addr", tr.RemoteAddr(), "error", err)
				c.Disconnect()
			}
			return
		}

		if c.recorder != nil {
			if rerr := c.recorder.RecordReceived(line); rerr != nil {
				logger.Warning("Failed to record received line", "error", rerr)
			}
		}

		c.notifyMessage(line)
	}
}

// Send writes one line to the server. Sends are serialized through a
// single-slot gate and spaced by the configured minimum interval, measured
// from completion of one write to the start of the next. An empty message is
// a no-op. After disconnect, Send returns nil without writing.
func (c *Client) Send(message string) error {
	if message == "" {
		return nil
	}

	switch c.State() {
	case StateUnconnected, StateConnecting:
		return ErrNotConnected
	}

	if c.guard != nil {
		if result := c.guard.Check(message); !result.Allowed {
			return &FloodBlockedError{Reason: result.Reason, Wait: result.Wait}
		}
	}

	// Acquire the send slot
	select {
	case c.sendSlot <- struct{}{}:
	case <-c.ctx.Done():
		return nil
	}
	release := func() { <-c.sendSlot }

	// Cancelled while waiting for the slot
	if c.ctx.Err() != nil {
		release()
		return nil
	}

	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		release()
		return ErrNotConnected
	}

	if err := tr.WriteLine(message); err != nil {
		release()
		if c.ctx.Err() != nil {
			// Writes racing a teardown fail against a closed transport;
			// expected, recorded for diagnostics only.
			logger.Debug("Write after teardown", "error", err)
			return nil
		}
		return &TransportFault{Op: "write", Err: err}
	}

	if c.recorder != nil {
		if rerr := c.recorder.RecordSent(message); rerr != nil {
			logger.Warning("Failed to record sent line", "error", rerr)
		}
	}

	// Hold the slot for the throttle interval; release immediately on cancel
	if c.cfg.MinSendInterval > 0 {
		timer := time.NewTimer(c.cfg.MinSendInterval)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
		}
	}
	release()

	return nil
}

// Disconnect tears the connection down: it cancels the client's scope,
// closes the transport, and emits exactly one ConnectionClosed notification.
// It is idempotent, callable from any state, and never returns an error.
func (c *Client) Disconnect() {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		tr := c.tr
		c.mu.Unlock()

		c.cancel()

		if tr != nil {
			if err := tr.Close(); err != nil {
				logger.Debug("Transport close failed", "error", err)
			}
		}

		c.notifyClosed()
		logger.Info("Disconnected")
	})
}

// Close disconnects (once) and waits for the read loop to exit. Safe to call
// multiple times and from any state.
func (c *Client) Close() {
	c.Disconnect()

	c.mu.Lock()
	done := c.readDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Client) notifyMessage(line string) {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	for _, l := range c.listeners {
		l.MessageReceived(line)
	}
}

func (c *Client) notifyClosed() {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	for _, l := range c.listeners {
		l.ConnectionClosed()
	}
}
