package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/metrics"
)

var (
	ErrNotConnected = errors.New("backend not connected")
	ErrConnClosed   = errors.New("backend connection closed")
)

// DefaultHeartbeatInterval is how often a keep-alive is sent on an open socket.
const DefaultHeartbeatInterval = 5 * time.Minute

// State is the lifecycle state of the backend connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ReconnectOptions controls redialing after the socket drops. Reconnect is
// off unless Enabled is set.
type ReconnectOptions struct {
	Enabled bool
	Min     time.Duration
	Max     time.Duration
	Factor  float64
	// MaxAttempts bounds consecutive failed dials. Zero means no bound.
	MaxAttempts int
}

// Options configures a backend connection.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteWait         time.Duration
	Reconnect         ReconnectOptions

	// Dialer overrides the gorilla dialer, mainly for tests.
	Dialer  *websocket.Dialer
	Header  http.Header
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// OnMessage receives every text frame, in arrival order, on the reader
	// goroutine.
	OnMessage func([]byte)
	// OnStateChange observes state transitions.
	OnStateChange func(State)
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = writeWait
	}
	if o.Reconnect.Min <= 0 {
		o.Reconnect.Min = 500 * time.Millisecond
	}
	if o.Reconnect.Max <= 0 {
		o.Reconnect.Max = 30 * time.Second
	}
	if o.Reconnect.Factor <= 1 {
		o.Reconnect.Factor = 2
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = o.HandshakeTimeout
		o.Dialer = &d
	}
	return o
}

// Conn owns the single socket to the backend.
type Conn struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	ws      *websocket.Conn
	closing bool
	changed chan struct{}

	// writeMu serializes frame writes on the socket.
	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open starts connecting to the backend in the background and returns
// immediately in the Connecting state.
func Open(ctx context.Context, opts Options) *Conn {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		opts:    opts,
		logger:  opts.Logger.With(zap.String("backend", opts.URL)),
		state:   StateConnecting,
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	opts.Metrics.ConnectionState(StateConnecting.String())

	go c.run()
	return c
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the socket is open.
func (c *Conn) Connected() bool {
	return c.State() == StateOpen
}

// WaitConnected blocks until the socket is open, the connection gives up, or
// ctx ends.
func (c *Conn) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, closing, changed := c.state, c.closing, c.changed
		c.mu.Unlock()

		if state == StateOpen {
			return nil
		}
		if closing {
			return ErrConnClosed
		}

		select {
		case <-changed:
		case <-c.done:
			if c.State() != StateOpen {
				return fmt.Errorf("%w: connection %s", ErrNotConnected, c.State())
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send writes one request as a text frame. It never queues: when the socket
// is not open it returns ErrNotConnected and nothing is sent.
func (c *Conn) Send(r protocol.Request) error {
	data, err := protocol.Encode(r)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ws, open := c.ws, c.state == StateOpen
	c.mu.Unlock()
	if !open || ws == nil {
		return ErrNotConnected
	}

	if err := ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return fmt.Errorf("failed to send %s: %w", r.Action(), err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", r.Action(), err)
	}
	c.opts.Metrics.RequestSent(string(r.Action()))
	return nil
}

// Close tears the connection down: the heartbeat stops, a close frame is sent
// if the socket is open, and Close waits for the background goroutines.
// Nothing is sent after Close returns.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		ws, wasOpen := c.ws, c.state == StateOpen
		c.closing = true
		c.mu.Unlock()
		c.setState(StateClosed, nil)

		if wasOpen && ws != nil {
			c.writeMu.Lock()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Debug("close frame not sent", zap.Error(err))
			}
			c.writeMu.Unlock()
		}

		c.cancel()
		if ws != nil {
			ws.Close()
		}
		<-c.done
		c.logger.Info("backend connection closed")
	})
	return nil
}

// setState records a transition and notifies observers. Once Close has begun
// every state collapses to Closed.
func (c *Conn) setState(s State, ws *websocket.Conn) {
	c.mu.Lock()
	if c.closing {
		s, ws = StateClosed, nil
	}
	prev := c.state
	c.state = s
	c.ws = ws
	if prev != s {
		close(c.changed)
		c.changed = make(chan struct{})
	}
	c.mu.Unlock()

	if prev == s {
		return
	}
	c.opts.Metrics.ConnectionState(s.String())
	c.logger.Debug("connection state changed",
		zap.Stringer("from", prev), zap.Stringer("to", s))
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// adopt publishes a freshly dialed socket unless Close won the race.
func (c *Conn) adopt(ws *websocket.Conn) bool {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return false
	}
	c.setState(StateOpen, ws)
	return c.State() == StateOpen
}

func (c *Conn) run() {
	defer close(c.done)

	b := &backoff.Backoff{
		Min:    c.opts.Reconnect.Min,
		Max:    c.opts.Reconnect.Max,
		Factor: c.opts.Reconnect.Factor,
		Jitter: true,
	}
	failures := 0
	redial := false

	for {
		c.setState(StateConnecting, nil)
		ws, _, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			if redial {
				c.opts.Metrics.Reconnect(false)
			}
			c.logger.Warn("backend dial failed", zap.Error(err), zap.Int("attempt", failures))
			c.setState(StateErrored, nil)
			if !c.retry(b, failures) {
				return
			}
			redial = true
			continue
		}

		if !c.adopt(ws) {
			ws.Close()
			return
		}
		if redial {
			c.opts.Metrics.Reconnect(true)
		}
		c.logger.Info("backend connection open")
		failures = 0
		b.Reset()

		c.serve(ws)
		if !c.retry(b, failures) {
			return
		}
		redial = true
	}
}

// retry waits out the next backoff delay and reports whether another dial
// should be attempted.
func (c *Conn) retry(b *backoff.Backoff, failures int) bool {
	if c.ctx.Err() != nil || !c.opts.Reconnect.Enabled {
		return false
	}
	if limit := c.opts.Reconnect.MaxAttempts; limit > 0 && failures >= limit {
		c.logger.Error("giving up on backend", zap.Int("attempts", failures))
		return false
	}

	delay := b.Duration()
	c.logger.Info("reconnecting to backend", zap.Duration("delay", delay))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// serve runs the heartbeat and the read loop for one socket until it drops.
func (c *Conn) serve(ws *websocket.Conn) {
	hbCtx, stopHeartbeat := context.WithCancel(c.ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(hbCtx)
	}()

	final := c.readPump(ws)

	// flip out of Open before the heartbeat is stopped so no keep-alive can
	// slip out on a dead socket
	c.setState(final, nil)
	stopHeartbeat()
	wg.Wait()
	ws.Close()
}

func (c *Conn) readPump(ws *websocket.Conn) State {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return StateClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("backend closed the connection", zap.Error(err))
				return StateClosed
			}
			c.logger.Error("backend connection failed", zap.Error(err))
			return StateErrored
		}
		if kind != websocket.TextMessage {
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(data)
		}
	}
}

func (c *Conn) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(protocol.KeepAlive{}); err != nil {
				c.logger.Debug("heartbeat skipped", zap.Error(err))
			}
		}
	}
}
