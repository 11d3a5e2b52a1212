// Package service is the facade the HTTP API, the MCP server and the CLI
// drive the matchup client through.
//
// Core Interfaces:
//
// MatchupService exposes connection status, the team catalog, page
// lifecycle, and the prediction and history operations of a page. Calls
// that start a backend request return as soon as the request is sent; the
// *AndWait variants block until the terminal frame arrives or the context
// ends, which is what synchronous callers such as MCP tools and the CLI want.
//
// Architecture:
//
// The service sits between the transports and the session package. It owns
// no request state itself: every page's views hold their own, and the
// service only resolves pages and forwards calls.
//
// Errors:
//
// Errors from the session package are returned unwrapped so callers can
// match session.ErrNotConnected, session.ErrRequestInFlight,
// session.ErrPageNotFound, session.ErrNoDataset, table.ErrColumnOutOfRange
// and *session.ValidationError with errors.Is and errors.As.
package service
