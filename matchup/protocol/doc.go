// Package protocol defines the wire format spoken with the matchup backend.
//
// The protocol package implements:
//   - Outbound requests (prediction query, table query, heartbeat)
//   - Inbound frames decoded into tagged variants
//   - Cell decoding for loosely typed table rows
//
// Message Protocol:
//
// Every message is a JSON text frame. Outbound requests carry an "action"
// field; inbound frames are envelopes of the form:
//
//	{"label": "chunk", "data": [["2023-09-10", "MIN", 24]], "request_id": "..."}
//
// The request_id is optional on inbound frames. Backends that echo it let
// the router correlate frames with the request that produced them; older
// backends omit it and frames are routed by label alone.
//
// Decoding:
//
// Decode validates a frame once at the connection boundary and returns one
// of PredictionResult, PredictionError, Headers or Chunk. Anything else is
// reported as ErrMalformedFrame or ErrUnknownLabel and never reaches a view.
package protocol
