package session

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/router"
)

// PredictionQuery pits Team's Season1 roster against Opponent's Season2 roster.
type PredictionQuery struct {
	Team     string `json:"team"`
	Opponent string `json:"opponent"`
	Season1  int    `json:"season1"`
	Season2  int    `json:"season2"`
}

// Outcome is the display form of a win fraction: wins out of 100 simulated
// games for each side.
type Outcome struct {
	Team1     string  `json:"team1"`
	Team2     string  `json:"team2"`
	WinPct    float64 `json:"win_pct"`
	Team1Wins int     `json:"team1_wins"`
	Team2Wins int     `json:"team2_wins"`
	Winner    string  `json:"winner"`
}

// NewOutcome converts the first team's win fraction. Ties go to team1.
func NewOutcome(team1, team2 string, winPct float64) Outcome {
	wins := int(math.Round(winPct * 100))
	o := Outcome{
		Team1:     team1,
		Team2:     team2,
		WinPct:    winPct,
		Team1Wins: wins,
		Team2Wins: 100 - wins,
		Winner:    team2,
	}
	if o.Team1Wins >= 50 {
		o.Winner = team1
	}
	return o
}

// PredictionSnapshot is a copy of the prediction view state.
type PredictionSnapshot struct {
	Query     *PredictionQuery `json:"query,omitempty"`
	Loading   bool             `json:"loading"`
	Outcome   *Outcome         `json:"outcome,omitempty"`
	Error     string           `json:"error,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// PredictionView tracks one prediction request at a time.
type PredictionView struct {
	deps     Deps
	logger   *zap.Logger
	onChange func()

	mu        sync.Mutex
	sub       *router.Subscription
	query     *PredictionQuery
	loading   bool
	outcome   *Outcome
	errMsg    string
	requestID string
	changed   chan struct{}
}

// NewPredictionView creates a view subscribed to prediction frames. onChange
// may be nil.
func NewPredictionView(deps Deps, onChange func()) *PredictionView {
	deps = deps.withDefaults()
	v := &PredictionView{
		deps:     deps,
		logger:   deps.Logger.Named("prediction"),
		onChange: onChange,
		changed:  make(chan struct{}),
	}
	if deps.Router != nil {
		v.sub = deps.Router.Subscribe(v.handle, protocol.LabelPredictionResult, protocol.LabelPredictionError)
	}
	return v
}

// Issue validates q and sends it. The result arrives asynchronously; use
// Snapshot or Wait to read it.
func (v *PredictionView) Issue(q PredictionQuery) error {
	v.mu.Lock()
	if v.sub == nil {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if !v.deps.connected() {
		v.mu.Unlock()
		return ErrNotConnected
	}
	if v.loading {
		v.mu.Unlock()
		return ErrRequestInFlight
	}

	team, opponent, err := validatePrediction(v.deps.Catalog, q, v.deps.Now().Year())
	if err != nil {
		v.mu.Unlock()
		v.deps.Metrics.ValidationRejected("prediction")
		return err
	}
	q.Team, q.Opponent = team.Code, opponent.Code

	id := v.deps.NewID()
	v.loading = true
	v.query = &q
	v.outcome = nil
	v.errMsg = ""
	v.requestID = id
	v.sub.Expect(id)

	req := protocol.PredictionRequest{
		RequestID: id,
		Team:      q.Team,
		Opponent:  q.Opponent,
		Season1:   q.Season1,
		Season2:   q.Season2,
	}
	if err := v.deps.send(req); err != nil {
		v.loading = false
		v.requestID = ""
		v.notifyLocked()
		v.mu.Unlock()
		v.fire()
		return err
	}

	v.logger.Debug("prediction requested",
		zap.String("request_id", id),
		zap.String("team", q.Team), zap.Int("season1", q.Season1),
		zap.String("opponent", q.Opponent), zap.Int("season2", q.Season2))
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
	return nil
}

func (v *PredictionView) handle(f protocol.Frame) {
	v.mu.Lock()
	if !v.loading {
		v.mu.Unlock()
		v.logger.Debug("dropping prediction frame with no request in flight",
			zap.String("label", string(f.Label())))
		return
	}

	switch f := f.(type) {
	case protocol.PredictionResult:
		o := NewOutcome(v.query.Team, v.query.Opponent, f.WinPct)
		v.outcome = &o
	case protocol.PredictionError:
		v.errMsg = "The model could not produce a prediction for this matchup."
		if f.Detail != "" {
			v.errMsg += " " + f.Detail
		}
		v.logger.Warn("prediction failed", zap.String("request_id", v.requestID), zap.String("detail", f.Detail))
	default:
		v.mu.Unlock()
		return
	}
	v.loading = false
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
}

// Snapshot returns a copy of the current state.
func (v *PredictionView) Snapshot() PredictionSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *PredictionView) snapshotLocked() PredictionSnapshot {
	s := PredictionSnapshot{
		Loading:   v.loading,
		Error:     v.errMsg,
		RequestID: v.requestID,
	}
	if v.query != nil {
		q := *v.query
		s.Query = &q
	}
	if v.outcome != nil {
		o := *v.outcome
		s.Outcome = &o
	}
	return s
}

// Loading reports whether a request is in flight.
func (v *PredictionView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Wait blocks until no request is in flight or ctx ends.
func (v *PredictionView) Wait(ctx context.Context) (PredictionSnapshot, error) {
	for {
		v.mu.Lock()
		if !v.loading {
			s := v.snapshotLocked()
			v.mu.Unlock()
			return s, nil
		}
		ch := v.changed
		v.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return v.Snapshot(), ctx.Err()
		}
	}
}

// Reset clears the result and abandons any request in flight.
func (v *PredictionView) Reset() {
	v.mu.Lock()
	v.query = nil
	v.loading = false
	v.outcome = nil
	v.errMsg = ""
	v.requestID = ""
	if v.sub != nil {
		v.sub.Expect("")
	}
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
}

// Release resets the view and stops listening for frames. The view cannot
// issue requests afterwards.
func (v *PredictionView) Release() {
	v.Reset()
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// notifyLocked wakes Wait callers. v.mu must be held.
func (v *PredictionView) notifyLocked() {
	close(v.changed)
	v.changed = make(chan struct{})
}

func (v *PredictionView) fire() {
	if v.onChange != nil {
		v.onChange()
	}
}
