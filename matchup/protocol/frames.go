package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownLabel   = errors.New("unknown frame label")
)

// Label tags an inbound frame. The label space is fixed.
type Label string

const (
	LabelPredictionResult Label = "model_results_team1_win_pct"
	LabelPredictionError  Label = "model_error"
	LabelHeaders          Label = "headers"
	LabelChunk            Label = "chunk"
	LabelLastChunk        Label = "last_chunk"
)

// Frame is one decoded inbound message.
type Frame interface {
	Label() Label
	// CorrelationID is the echoed request id, empty when the backend did not send one.
	CorrelationID() string
}

// PredictionResult carries the fraction of simulations won by the first team.
type PredictionResult struct {
	RequestID string
	WinPct    float64
}

// PredictionError reports that the backend could not compute a prediction.
type PredictionError struct {
	RequestID string
	Detail    string
}

// Headers begins a streamed table result.
type Headers struct {
	RequestID string
	Columns   []string
}

// Chunk is one page of a streamed table result. Final marks the last_chunk
// frame that terminates the stream.
type Chunk struct {
	RequestID string
	Rows      []Row
	Final     bool
}

func (PredictionResult) Label() Label            { return LabelPredictionResult }
func (f PredictionResult) CorrelationID() string { return f.RequestID }
func (PredictionError) Label() Label             { return LabelPredictionError }
func (f PredictionError) CorrelationID() string  { return f.RequestID }
func (Headers) Label() Label                     { return LabelHeaders }
func (f Headers) CorrelationID() string          { return f.RequestID }
func (f Chunk) CorrelationID() string            { return f.RequestID }

func (f Chunk) Label() Label {
	if f.Final {
		return LabelLastChunk
	}
	return LabelChunk
}

// envelope is the raw shape of every inbound frame.
type envelope struct {
	Label     Label           `json:"label"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id,omitempty"`
}

// Decode parses a text frame into its tagged variant.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Label == "" {
		return nil, fmt.Errorf("%w: missing label", ErrMalformedFrame)
	}

	switch env.Label {
	case LabelPredictionResult:
		var pct float64
		if err := json.Unmarshal(env.Data, &pct); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedFrame, env.Label, err)
		}
		if pct < 0 || pct > 1 {
			return nil, fmt.Errorf("%w: win fraction %v outside [0,1]", ErrMalformedFrame, pct)
		}
		return PredictionResult{RequestID: env.RequestID, WinPct: pct}, nil

	case LabelPredictionError:
		return PredictionError{RequestID: env.RequestID, Detail: errorDetail(env.Data)}, nil

	case LabelHeaders:
		var cols []string
		if err := json.Unmarshal(env.Data, &cols); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedFrame, env.Label, err)
		}
		return Headers{RequestID: env.RequestID, Columns: cols}, nil

	case LabelChunk, LabelLastChunk:
		var rows []Row
		if isNull(env.Data) {
			rows = nil
		} else if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedFrame, env.Label, err)
		}
		return Chunk{RequestID: env.RequestID, Rows: rows, Final: env.Label == LabelLastChunk}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, env.Label)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// errorDetail extracts a human readable message from a model_error payload,
// which may be absent, a string, or an arbitrary value.
func errorDetail(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
