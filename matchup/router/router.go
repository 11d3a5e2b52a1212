// Package router fans inbound backend frames out to the views that asked
// for them.
//
// Frames are decoded once, at the connection boundary, into protocol
// variants. Each subscriber registers for a set of labels and may narrow
// delivery to a single correlation id. A frame that carries a request id
// only reaches subscribers expecting that id (or expecting none); a frame
// without one, as sent by backends that do not echo ids, is delivered by
// label alone.
package router

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/metrics"
)

// Handler receives a decoded frame. Handlers run on the connection's reader
// goroutine and must not block.
type Handler func(protocol.Frame)

// Subscription is one registered handler.
type Subscription struct {
	router  *Router
	handler Handler
	labels  []protocol.Label

	expect atomic.Pointer[string]
	closed atomic.Bool
	// running is held for reading while the handler executes so
	// Unsubscribe can wait for an in-progress delivery.
	running sync.RWMutex
}

// Expect narrows delivery to frames correlated with id. An empty id accepts
// every frame with a matching label.
func (s *Subscription) Expect(id string) {
	s.expect.Store(&id)
}

// Expected returns the correlation id currently accepted.
func (s *Subscription) Expected() string {
	if p := s.expect.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Subscription) accepts(f protocol.Frame) bool {
	want := s.Expected()
	got := f.CorrelationID()
	return want == "" || got == "" || want == got
}

// Unsubscribe removes the subscription. Once it returns the handler is not
// running and will not be called again. It must not be called from the
// subscription's own handler.
func (s *Subscription) Unsubscribe() {
	if s.closed.Swap(true) {
		return
	}
	s.router.remove(s)
	s.running.Lock()
	s.running.Unlock()
}

func (s *Subscription) deliver(f protocol.Frame) bool {
	s.running.RLock()
	defer s.running.RUnlock()
	if s.closed.Load() {
		return false
	}
	s.handler(f)
	return true
}

// Router dispatches frames by label.
type Router struct {
	mu      sync.RWMutex
	subs    map[protocol.Label]map[*Subscription]struct{}
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for dropped frames.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMetrics records received and dropped frames.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		subs:   make(map[protocol.Label]map[*Subscription]struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers h for the given labels.
func (r *Router) Subscribe(h Handler, labels ...protocol.Label) *Subscription {
	s := &Subscription{router: r, handler: h, labels: labels}

	r.mu.Lock()
	for _, l := range labels {
		if r.subs[l] == nil {
			r.subs[l] = make(map[*Subscription]struct{})
		}
		r.subs[l][s] = struct{}{}
	}
	r.mu.Unlock()

	if len(labels) > 0 {
		r.logger.Debug("subscribed",
			zap.String("label", string(labels[0])),
			zap.Int("subscribers", r.Subscribers(labels[0])))
	}
	return s
}

func (r *Router) remove(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range s.labels {
		if set, ok := r.subs[l]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(r.subs, l)
			}
		}
	}
}

// Subscribers returns how many subscriptions listen for label.
func (r *Router) Subscribers(label protocol.Label) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[label])
}

// HandleMessage decodes one raw text frame and dispatches it. Frames that
// fail to decode are logged and dropped.
func (r *Router) HandleMessage(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownLabel) {
			reason = "unknown_label"
		}
		r.metrics.FrameDropped(reason)
		r.logger.Warn("dropping inbound frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	r.Dispatch(frame)
}

// Dispatch delivers an already decoded frame and returns the number of
// handlers that received it.
func (r *Router) Dispatch(f protocol.Frame) int {
	r.metrics.FrameReceived(string(f.Label()))

	r.mu.RLock()
	targets := make([]*Subscription, 0, len(r.subs[f.Label()]))
	for s := range r.subs[f.Label()] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if !s.accepts(f) {
			continue
		}
		if s.deliver(f) {
			delivered++
		}
	}

	if delivered == 0 {
		r.metrics.FrameDropped("no_subscriber")
		r.logger.Debug("no subscriber for frame",
			zap.String("label", string(f.Label())),
			zap.String("request_id", f.CorrelationID()))
	}
	return delivered
}
