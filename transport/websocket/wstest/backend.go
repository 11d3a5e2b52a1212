// Package wstest runs an in-process fake of the matchup backend for tests.
//
// The fake accepts WebSocket connections, records every inbound request and
// answers through a Responder, mirroring how the real backend streams
// prediction results and table chunks.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Request is an inbound message as the backend sees it.
type Request struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
	Query     string `json:"query,omitempty"`
	Team      string `json:"team,omitempty"`
	Opponent  string `json:"opponent,omitempty"`
	Season1   string `json:"season1,omitempty"`
	Season2   string `json:"season2,omitempty"`
}

// Responder produces the frames written back for one request.
type Responder func(Request) [][]byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Backend is a fake matchup backend.
type Backend struct {
	t       testing.TB
	server  *httptest.Server
	respond Responder

	mu       sync.Mutex
	conns    map[*websocket.Conn]*sync.Mutex
	accepted int

	requests chan Request
}

// NewBackend starts a fake backend that answers with respond, which may be nil.
// It is shut down when the test ends.
func NewBackend(t testing.TB, respond Responder) *Backend {
	t.Helper()
	b := &Backend{
		t:        t,
		respond:  respond,
		conns:    make(map[*websocket.Conn]*sync.Mutex),
		requests: make(chan Request, 256),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// URL is the ws:// address of the backend.
func (b *Backend) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// Accepted returns how many connections have been upgraded so far.
func (b *Backend) Accepted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted
}

// Connections returns how many connections are currently open.
func (b *Backend) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// NextRequest waits for the next inbound request.
func (b *Backend) NextRequest(timeout time.Duration) (Request, bool) {
	select {
	case r := <-b.requests:
		return r, true
	case <-time.After(timeout):
		return Request{}, false
	}
}

// NextRequestOf skips requests until one with the given action arrives.
func (b *Backend) NextRequestOf(action string, timeout time.Duration) (Request, bool) {
	deadline := time.Now().Add(timeout)
	for {
		r, ok := b.NextRequest(time.Until(deadline))
		if !ok {
			return Request{}, false
		}
		if r.Action == action {
			return r, true
		}
	}
}

// Push writes a frame to every open connection.
func (b *Backend) Push(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, wmu := range b.conns {
		wmu.Lock()
		conn.WriteMessage(websocket.TextMessage, frame)
		wmu.Unlock()
	}
}

// Drop closes every connection abruptly, without a close handshake.
func (b *Backend) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.Close()
	}
}

// Shutdown closes every connection with a normal close frame.
func (b *Backend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	for conn, wmu := range b.conns {
		wmu.Lock()
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		wmu.Unlock()
	}
}

// Close stops the server.
func (b *Backend) Close() {
	b.Drop()
	b.server.Close()
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.t.Logf("wstest: upgrade failed: %v", err)
		return
	}
	wmu := &sync.Mutex{}

	b.mu.Lock()
	b.conns[conn] = wmu
	b.accepted++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			b.t.Logf("wstest: bad request %q: %v", data, err)
			continue
		}
		select {
		case b.requests <- req:
		default:
		}
		if b.respond == nil {
			continue
		}
		for _, frame := range b.respond(req) {
			wmu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, frame)
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Frame renders one inbound frame. An empty requestID omits the field.
func Frame(label string, data any, requestID string) []byte {
	env := map[string]any{"label": label, "data": data}
	if requestID != "" {
		env["request_id"] = requestID
	}
	out, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return out
}

// Prediction answers prediction requests with pct and ignores everything else.
func Prediction(pct float64) Responder {
	return func(r Request) [][]byte {
		if r.Action != "nfl_matchups_model" {
			return nil
		}
		return [][]byte{Frame("model_results_team1_win_pct", pct, r.RequestID)}
	}
}

// PredictionFailure answers prediction requests with a model_error frame.
func PredictionFailure(detail string) Responder {
	return func(r Request) [][]byte {
		if r.Action != "nfl_matchups_model" {
			return nil
		}
		return [][]byte{Frame("model_error", detail, r.RequestID)}
	}
}

// Table answers table queries with headers, one chunk per page, and an empty
// last_chunk.
func Table(headers []string, pages ...[][]any) Responder {
	return func(r Request) [][]byte {
		if r.Action != "nfl_all_games" {
			return nil
		}
		frames := [][]byte{Frame("headers", headers, r.RequestID)}
		for _, p := range pages {
			frames = append(frames, Frame("chunk", p, r.RequestID))
		}
		return append(frames, Frame("last_chunk", [][]any{}, r.RequestID))
	}
}

// Combine tries each responder in turn and returns the first non-empty answer.
func Combine(rs ...Responder) Responder {
	return func(r Request) [][]byte {
		for _, fn := range rs {
			if out := fn(r); len(out) > 0 {
				return out
			}
		}
		return nil
	}
}
