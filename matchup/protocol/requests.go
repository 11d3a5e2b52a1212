package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Action names the backend route an outbound request is sent to.
type Action string

const (
	ActionPrediction Action = "nfl_matchups_model"
	ActionTableQuery Action = "nfl_all_games"
	ActionHeartbeat  Action = "heartbeat"
)

// Scope selects which games a table query covers: every team or one team code.
type Scope string

// ScopeAll is the "all teams" sentinel used by the history view.
const ScopeAll Scope = "ALL"

// IsAll reports whether the scope covers every team.
func (s Scope) IsAll() bool { return s == "" || s == ScopeAll }

// Request is an outbound message.
type Request interface {
	Action() Action
	// CorrelationID returns the id the backend is expected to echo, if any.
	CorrelationID() string
}

// PredictionRequest asks for the fraction of simulated games won by Team
// (playing its Season1 roster) against Opponent (Season2 roster).
type PredictionRequest struct {
	RequestID string
	Team      string
	Opponent  string
	Season1   int
	Season2   int
}

func (PredictionRequest) Action() Action          { return ActionPrediction }
func (r PredictionRequest) CorrelationID() string { return r.RequestID }

// MarshalJSON renders seasons as strings, which is what the backend expects.
func (r PredictionRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    Action `json:"action"`
		RequestID string `json:"request_id,omitempty"`
		Team      string `json:"team"`
		Opponent  string `json:"opponent"`
		Season1   string `json:"season1"`
		Season2   string `json:"season2"`
	}{
		Action:    ActionPrediction,
		RequestID: r.RequestID,
		Team:      r.Team,
		Opponent:  r.Opponent,
		Season1:   strconv.Itoa(r.Season1),
		Season2:   strconv.Itoa(r.Season2),
	})
}

// TableQueryRequest asks for the historical game rows of one season.
// Only the rendered Query goes over the wire.
type TableQueryRequest struct {
	RequestID string
	Scope     Scope
	Season    int
}

func (TableQueryRequest) Action() Action          { return ActionTableQuery }
func (r TableQueryRequest) CorrelationID() string { return r.RequestID }

// Query renders the declarative filter the backend evaluates. Scope must
// already be validated against the team catalog.
func (r TableQueryRequest) Query() string {
	if r.Scope.IsAll() {
		return fmt.Sprintf(`SELECT * FROM "nfl"."nfl_games_all" WHERE season = %d;`, r.Season)
	}
	return fmt.Sprintf(`SELECT * FROM "nfl"."nfl_games_all" WHERE season = %d AND team = '%s';`, r.Season, r.Scope)
}

func (r TableQueryRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    Action `json:"action"`
		RequestID string `json:"request_id,omitempty"`
		Query     string `json:"query"`
	}{
		Action:    ActionTableQuery,
		RequestID: r.RequestID,
		Query:     r.Query(),
	})
}

// KeepAlive is the idle-connection liveness signal.
type KeepAlive struct{}

func (KeepAlive) Action() Action        { return ActionHeartbeat }
func (KeepAlive) CorrelationID() string { return "" }

func (KeepAlive) MarshalJSON() ([]byte, error) {
	return []byte(`{"action":"heartbeat"}`), nil
}

// Encode serializes a request into a text frame payload.
func Encode(r Request) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", r.Action(), err)
	}
	return data, nil
}
