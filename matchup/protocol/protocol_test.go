package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePredictionRequest(t *testing.T) {
	data, err := Encode(PredictionRequest{
		RequestID: "abc",
		Team:      "MIN",
		Opponent:  "BUF",
		Season1:   2023,
		Season2:   2022,
	})
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]string{
		"action":     "nfl_matchups_model",
		"request_id": "abc",
		"team":       "MIN",
		"opponent":   "BUF",
		"season1":    "2023",
		"season2":    "2022",
	}, got)
}

func TestEncodeTableQueryRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   TableQueryRequest
		query string
	}{
		{
			name:  "all teams",
			req:   TableQueryRequest{Scope: ScopeAll, Season: 2023},
			query: `SELECT * FROM "nfl"."nfl_games_all" WHERE season = 2023;`,
		},
		{
			name:  "empty scope means all teams",
			req:   TableQueryRequest{Season: 1999},
			query: `SELECT * FROM "nfl"."nfl_games_all" WHERE season = 1999;`,
		},
		{
			name:  "single team",
			req:   TableQueryRequest{Scope: "MIN", Season: 2023},
			query: `SELECT * FROM "nfl"."nfl_games_all" WHERE season = 2023 AND team = 'MIN';`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.req)
			require.NoError(t, err)

			var got struct {
				Action    string `json:"action"`
				Query     string `json:"query"`
				RequestID string `json:"request_id"`
			}
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, "nfl_all_games", got.Action)
			assert.Equal(t, tt.query, got.Query)
			assert.Empty(t, got.RequestID)
		})
	}
}

func TestEncodeKeepAlive(t *testing.T) {
	data, err := Encode(KeepAlive{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"heartbeat"}`, string(data))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Frame
	}{
		{
			name:  "prediction result",
			input: `{"label":"model_results_team1_win_pct","data":0.73}`,
			want:  PredictionResult{WinPct: 0.73},
		},
		{
			name:  "prediction result with request id",
			input: `{"label":"model_results_team1_win_pct","data":1,"request_id":"r1"}`,
			want:  PredictionResult{RequestID: "r1", WinPct: 1},
		},
		{
			name:  "prediction error without data",
			input: `{"label":"model_error"}`,
			want:  PredictionError{},
		},
		{
			name:  "prediction error with message",
			input: `{"label":"model_error","data":"team not found"}`,
			want:  PredictionError{Detail: "team not found"},
		},
		{
			name:  "headers",
			input: `{"label":"headers","data":["Date","Team","Score"]}`,
			want:  Headers{Columns: []string{"Date", "Team", "Score"}},
		},
		{
			name:  "chunk with mixed cells",
			input: `{"label":"chunk","data":[["2023-09-10","MIN",24,null,true]]}`,
			want:  Chunk{Rows: []Row{{"2023-09-10", "MIN", "24", "", "true"}}},
		},
		{
			name:  "last chunk",
			input: `{"label":"last_chunk","data":[["2023-09-17","BUF","20"]],"request_id":"r2"}`,
			want:  Chunk{RequestID: "r2", Rows: []Row{{"2023-09-17", "BUF", "20"}}, Final: true},
		},
		{
			name:  "empty last chunk",
			input: `{"label":"last_chunk","data":null}`,
			want:  Chunk{Final: true},
		},
		{
			name:  "numbers keep their literal text",
			input: `{"label":"chunk","data":[[1.50,-3,2e3]]}`,
			want:  Chunk{Rows: []Row{{"1.50", "-3", "2e3"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not json", `not json`, ErrMalformedFrame},
		{"array instead of object", `[1,2,3]`, ErrMalformedFrame},
		{"missing label", `{"data":1}`, ErrMalformedFrame},
		{"win fraction above one", `{"label":"model_results_team1_win_pct","data":1.5}`, ErrMalformedFrame},
		{"win fraction negative", `{"label":"model_results_team1_win_pct","data":-0.1}`, ErrMalformedFrame},
		{"win fraction as text", `{"label":"model_results_team1_win_pct","data":"0.5"}`, ErrMalformedFrame},
		{"headers not strings", `{"label":"headers","data":[1,2]}`, ErrMalformedFrame},
		{"chunk not rows", `{"label":"chunk","data":"rows"}`, ErrMalformedFrame},
		{"nested cell", `{"label":"chunk","data":[[["x"]]]}`, ErrMalformedFrame},
		{"unknown label", `{"label":"something_else","data":1}`, ErrUnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.input))
			assert.Nil(t, frame)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChunkLabel(t *testing.T) {
	assert.Equal(t, LabelChunk, Chunk{}.Label())
	assert.Equal(t, LabelLastChunk, Chunk{Final: true}.Label())
}

func TestRowAt(t *testing.T) {
	row := NewRow("a", "b")
	assert.Equal(t, Cell("a"), row.At(0))
	assert.Equal(t, Cell("b"), row.At(1))
	assert.Equal(t, Cell(""), row.At(2))
	assert.Equal(t, Cell(""), row.At(-1))
	assert.Equal(t, []string{"a", "b"}, row.Strings())
}
